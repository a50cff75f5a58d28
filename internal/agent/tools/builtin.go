package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultOpenMeteoBaseURL = "https://api.open-meteo.com"

// BuiltinConfig carries the external credentials the builtin tools need.
// A zero value is valid: tools that need credentials degrade to placeholder
// responses instead of failing registration.
type BuiltinConfig struct {
	TavilyAPIKey     string
	TavilyAPIHost    string
	OpenMeteoBaseURL string
	HTTPClient       *http.Client
}

// RegisterBuiltins registers the four builtin tools into the registry.
func RegisterBuiltins(r *Registry, cfg BuiltinConfig) error {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	builtins := []Tool{
		NewCalculateTool(),
		NewDateTimeTool(),
		NewWeatherTool(cfg.OpenMeteoBaseURL, client),
		NewSearchWebTool(cfg.TavilyAPIKey, cfg.TavilyAPIHost, client),
	}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// NewCalculateTool evaluates plain arithmetic expressions. Evaluation
// failures are returned as data in the result payload, matching the
// behaviour models are prompted against.
func NewCalculateTool() Tool {
	return Tool{
		Name:        "calculate",
		Description: "Perform a mathematical calculation",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Mathematical expression to evaluate (e.g., '2 + 2', '10 * 5')",
				},
			},
			"required":             []any{"expression"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			expression, _ := args["expression"].(string)
			result, err := evaluateExpression(expression)
			if err != nil {
				return map[string]any{
					"error":      fmt.Sprintf("Failed to calculate: %s", expression),
					"expression": expression,
				}, nil
			}
			return map[string]any{
				"expression": expression,
				"result":     result,
			}, nil
		},
	}
}

// NewDateTimeTool reports the current date and time, optionally shifted
// into a requested IANA timezone.
func NewDateTimeTool() Tool {
	return Tool{
		Name:        "get_datetime",
		Description: "Get the current date and time in ISO format",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "Optional timezone (e.g., 'America/New_York', 'Asia/Kolkata')",
				},
			},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			now := time.Now()
			loc := now.Location()
			if tz, ok := args["timezone"].(string); ok && tz != "" {
				parsed, err := time.LoadLocation(tz)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", tz)
				}
				loc = parsed
			}
			local := now.In(loc)
			return map[string]any{
				"iso":       now.UTC().Format(time.RFC3339Nano),
				"formatted": local.Format("January 2, 2006 03:04:05 PM MST"),
				"timestamp": now.UnixMilli(),
			}, nil
		},
	}
}

// openMeteoResponse is the subset of the forecast payload the weather
// tool uses.
type openMeteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weathercode"`
		Humidity    float64 `json:"relativehumidity_2m"`
	} `json:"current"`
}

// NewWeatherTool looks up current conditions for a coordinate pair via the
// Open-Meteo forecast API. Network failures come back as data so the model
// can tell the user, not as an aborted call.
func NewWeatherTool(baseURL string, client *http.Client) Tool {
	if baseURL == "" {
		baseURL = defaultOpenMeteoBaseURL
	}
	return Tool{
		Name:        "get_weather",
		Description: "Get the current weather at a location",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"latitude": map[string]any{
					"type":        "number",
					"description": "Latitude of the location",
				},
				"longitude": map[string]any{
					"type":        "number",
					"description": "Longitude of the location",
				},
				"city": map[string]any{
					"type":        "string",
					"description": "City name for display purposes",
				},
			},
			"required":             []any{"latitude", "longitude", "city"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			latitude, _ := asFloat(args["latitude"])
			longitude, _ := asFloat(args["longitude"])
			city, _ := args["city"].(string)

			data, err := fetchCurrentWeather(ctx, client, baseURL, latitude, longitude)
			if err != nil {
				return map[string]any{
					"error": fmt.Sprintf("Failed to get weather for %s", city),
					"city":  city,
				}, nil
			}

			return map[string]any{
				"city":        city,
				"temperature": data.Current.Temperature,
				"unit":        "°C",
				"weatherCode": data.Current.WeatherCode,
				"humidity":    data.Current.Humidity,
				"description": weatherDescription(data.Current.WeatherCode),
			}, nil
		},
	}
}

func fetchCurrentWeather(ctx context.Context, client *http.Client, baseURL string, latitude, longitude float64) (*openMeteoResponse, error) {
	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%g", latitude))
	query.Set("longitude", fmt.Sprintf("%g", longitude))
	query.Set("current", "temperature_2m,weathercode,relativehumidity_2m")
	query.Set("timezone", "auto")

	endpoint := fmt.Sprintf("%s/v1/forecast?%s", strings.TrimRight(baseURL, "/"), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned HTTP %d", resp.StatusCode)
	}

	var data openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &data, nil
}

// weatherDescription maps WMO weather interpretation codes to a short
// human-readable label.
func weatherDescription(code int) string {
	descriptions := map[int]string{
		0:  "Clear sky",
		1:  "Mainly clear",
		2:  "Partly cloudy",
		3:  "Overcast",
		45: "Foggy",
		48: "Depositing rime fog",
		51: "Light drizzle",
		53: "Moderate drizzle",
		55: "Dense drizzle",
		61: "Slight rain",
		63: "Moderate rain",
		65: "Heavy rain",
		71: "Slight snow",
		73: "Moderate snow",
		75: "Heavy snow",
		77: "Snow grains",
		80: "Slight rain showers",
		81: "Moderate rain showers",
		82: "Violent rain showers",
		85: "Slight snow showers",
		86: "Heavy snow showers",
		95: "Thunderstorm",
		96: "Thunderstorm with slight hail",
		99: "Thunderstorm with heavy hail",
	}
	if desc, ok := descriptions[code]; ok {
		return desc
	}
	return "Unknown"
}

const defaultTavilyAPIHost = "https://api.tavily.com"

// tavilySearchRequest represents a Tavily API request
type tavilySearchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeAnswer bool   `json:"include_answer,omitempty"`
}

// tavilySearchResponse represents a Tavily API response
type tavilySearchResponse struct {
	Answer  string `json:"answer,omitempty"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float32 `json:"score"`
		PublishedDate string  `json:"published_date,omitempty"`
	} `json:"results"`
	Query string `json:"query"`
}

// NewSearchWebTool searches the web through the Tavily API. Without an API
// key it degrades to a placeholder response telling the model that search
// is not configured.
func NewSearchWebTool(apiKey, apiHost string, client *http.Client) Tool {
	if apiHost == "" {
		apiHost = defaultTavilyAPIHost
	}
	return Tool{
		Name:        "search_web",
		Description: "Search the web for information. Use this when you need to find current information.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required":             []any{"query"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if apiKey == "" {
				return map[string]any{
					"message": "Web search is not configured. Please set up a search API integration.",
					"query":   query,
					"results": []any{},
				}, nil
			}
			return tavilySearch(ctx, client, apiHost, apiKey, query)
		},
	}
}

func tavilySearch(ctx context.Context, client *http.Client, apiHost, apiKey, query string) (any, error) {
	reqBody, err := json.Marshal(tavilySearchRequest{
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    5,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/search", strings.TrimRight(apiHost, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned HTTP %d", resp.StatusCode)
	}

	var tavilyResp tavilySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]map[string]any, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, map[string]any{
			"title":        r.Title,
			"url":          r.URL,
			"content":      r.Content,
			"score":        r.Score,
			"published_at": r.PublishedDate,
		})
	}

	return map[string]any{
		"query":   query,
		"answer":  tavilyResp.Answer,
		"results": results,
	}, nil
}
