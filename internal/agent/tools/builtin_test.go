package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTool(t *testing.T) {
	tool := NewCalculateTool()

	t.Run("evaluates expression", func(t *testing.T) {
		out, err := tool.Handler(context.Background(), map[string]any{"expression": "2 + 2"})
		require.NoError(t, err)

		payload := out.(map[string]any)
		assert.Equal(t, float64(4), payload["result"])
		assert.Equal(t, "2 + 2", payload["expression"])
	})

	t.Run("failure is data", func(t *testing.T) {
		out, err := tool.Handler(context.Background(), map[string]any{"expression": "1 / 0"})
		require.NoError(t, err)

		payload := out.(map[string]any)
		assert.Equal(t, "Failed to calculate: 1 / 0", payload["error"])
		assert.Equal(t, "1 / 0", payload["expression"])
	})
}

func TestDateTimeTool(t *testing.T) {
	tool := NewDateTimeTool()

	t.Run("local time", func(t *testing.T) {
		out, err := tool.Handler(context.Background(), map[string]any{})
		require.NoError(t, err)

		payload := out.(map[string]any)
		iso, err := time.Parse(time.RFC3339Nano, payload["iso"].(string))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), iso, 5*time.Second)
		assert.NotEmpty(t, payload["formatted"])
		assert.IsType(t, int64(0), payload["timestamp"])
	})

	t.Run("explicit timezone", func(t *testing.T) {
		out, err := tool.Handler(context.Background(), map[string]any{"timezone": "UTC"})
		require.NoError(t, err)
		assert.Contains(t, out.(map[string]any)["formatted"], "UTC")
	})

	t.Run("unknown timezone errors", func(t *testing.T) {
		_, err := tool.Handler(context.Background(), map[string]any{"timezone": "Mars/Olympus"})
		assert.Error(t, err)
	})
}

func TestWeatherTool(t *testing.T) {
	t.Run("maps forecast payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/forecast", r.URL.Path)
			assert.Equal(t, "temperature_2m,weathercode,relativehumidity_2m", r.URL.Query().Get("current"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"current":{"temperature_2m":21.5,"weathercode":3,"relativehumidity_2m":64}}`))
		}))
		defer server.Close()

		tool := NewWeatherTool(server.URL, server.Client())
		out, err := tool.Handler(context.Background(), map[string]any{
			"latitude":  52.52,
			"longitude": 13.41,
			"city":      "Berlin",
		})
		require.NoError(t, err)

		payload := out.(map[string]any)
		assert.Equal(t, "Berlin", payload["city"])
		assert.Equal(t, 21.5, payload["temperature"])
		assert.Equal(t, "°C", payload["unit"])
		assert.Equal(t, "Overcast", payload["description"])
		assert.Equal(t, float64(64), payload["humidity"])
	})

	t.Run("upstream failure is data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		tool := NewWeatherTool(server.URL, server.Client())
		out, err := tool.Handler(context.Background(), map[string]any{
			"latitude":  0.0,
			"longitude": 0.0,
			"city":      "Nowhere",
		})
		require.NoError(t, err)

		payload := out.(map[string]any)
		assert.Equal(t, "Failed to get weather for Nowhere", payload["error"])
		assert.Equal(t, "Nowhere", payload["city"])
	})
}

func TestWeatherDescription(t *testing.T) {
	assert.Equal(t, "Clear sky", weatherDescription(0))
	assert.Equal(t, "Thunderstorm", weatherDescription(95))
	assert.Equal(t, "Unknown", weatherDescription(42))
}

func TestSearchWebTool(t *testing.T) {
	t.Run("unconfigured placeholder", func(t *testing.T) {
		tool := NewSearchWebTool("", "", http.DefaultClient)
		out, err := tool.Handler(context.Background(), map[string]any{"query": "golang"})
		require.NoError(t, err)

		payload := out.(map[string]any)
		assert.Equal(t, "golang", payload["query"])
		assert.Contains(t, payload["message"], "not configured")
		assert.Empty(t, payload["results"])
	})

	t.Run("proxies search results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"answer":"Go is a language","results":[{"title":"Go","url":"https://go.dev","content":"docs","score":0.9}],"query":"golang"}`))
		}))
		defer server.Close()

		tool := NewSearchWebTool("tvly-test", server.URL, server.Client())
		out, err := tool.Handler(context.Background(), map[string]any{"query": "golang"})
		require.NoError(t, err)

		payload := out.(map[string]any)
		assert.Equal(t, "Go is a language", payload["answer"])

		results := payload["results"].([]map[string]any)
		require.Len(t, results, 1)
		assert.Equal(t, "Go", results[0]["title"])
		assert.Equal(t, "https://go.dev", results[0]["url"])
	})

	t.Run("upstream error surfaces", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		tool := NewSearchWebTool("tvly-test", server.URL, server.Client())
		_, err := tool.Handler(context.Background(), map[string]any{"query": "golang"})
		assert.Error(t, err)
	})
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, BuiltinConfig{}))

	for _, name := range []string{"calculate", "get_datetime", "get_weather", "search_web"} {
		_, ok := r.Get(name)
		assert.True(t, ok, name)
	}

	// Registering twice must fail on the duplicate names.
	assert.Error(t, RegisterBuiltins(r, BuiltinConfig{}))
}
