package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/database"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/logger"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/redis"
)

type Config struct {
	Server   ServerConfig
	Database database.Config
	Redis    redis.Config
	Log      logger.Config
	Auth     AuthConfig
	Agent    AgentConfig
	Tools    ToolsConfig
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// AgentConfig holds the defaults applied to a turn when the request does not
// override them.
type AgentConfig struct {
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Temperature  float64       `mapstructure:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	MaxSteps     int           `mapstructure:"max_steps"`
	ToolTimeout  time.Duration `mapstructure:"tool_timeout"`
	TurnDeadline time.Duration `mapstructure:"turn_deadline"`

	// OpenAI-compatible inference endpoint
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type ToolsConfig struct {
	Tavily    TavilyConfig    `mapstructure:"tavily"`
	OpenMeteo OpenMeteoConfig `mapstructure:"open_meteo"`
}

type TavilyConfig struct {
	APIKey  string `mapstructure:"api_key"`
	APIHost string `mapstructure:"api_host"`
}

type OpenMeteoConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

const defaultSystemPrompt = "You are an intelligent AI assistant with access to tools. " +
	"Use the tools when helpful to answer the user's questions. Be concise and helpful."

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.Agent.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills zero-valued agent fields with the built-in defaults.
func (c *AgentConfig) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 10
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = 30 * time.Second
	}
	if c.TurnDeadline == 0 {
		c.TurnDeadline = 60 * time.Second
	}
}
