package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/triad-ai/triad/pkg/models"
)

// coordinates of the cities the demo deployment knows about. Unknown cities
// fail as NOT_FOUND rather than hitting a geocoding service.
var cityCoordinates = map[string]struct{ Lat, Lon float64 }{
	"amsterdam":     {52.37, 4.89},
	"rotterdam":     {51.92, 4.48},
	"utrecht":       {52.09, 5.12},
	"the hague":     {52.08, 4.31},
	"den haag":      {52.08, 4.31},
	"eindhoven":     {51.44, 5.47},
	"groningen":     {53.22, 6.57},
	"london":        {51.51, -0.13},
	"paris":         {48.86, 2.35},
	"berlin":        {52.52, 13.41},
	"madrid":        {40.42, -3.70},
	"rome":          {41.90, 12.50},
	"new york":      {40.71, -74.01},
	"san francisco": {37.77, -122.42},
	"tokyo":         {35.68, 139.69},
}

// weatherCodes maps WMO weather codes to short descriptions.
var weatherCodes = map[int]string{
	0: "clear sky", 1: "mainly clear", 2: "partly cloudy", 3: "overcast",
	45: "fog", 48: "depositing rime fog",
	51: "light drizzle", 53: "moderate drizzle", 55: "dense drizzle",
	61: "slight rain", 63: "moderate rain", 65: "heavy rain",
	71: "slight snow", 73: "moderate snow", 75: "heavy snow",
	80: "rain showers", 81: "moderate rain showers", 82: "violent rain showers",
	95: "thunderstorm", 96: "thunderstorm with hail", 99: "thunderstorm with heavy hail",
}

func describeWeatherCode(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return fmt.Sprintf("weather code %d", code)
}

// openMeteoResponse is the subset of the Open-Meteo payload we consume.
type openMeteoResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
	Daily struct {
		Time           []string  `json:"time"`
		TempMax        []float64 `json:"temperature_2m_max"`
		TempMin        []float64 `json:"temperature_2m_min"`
		WeatherCode    []int     `json:"weathercode"`
		PrecipProbMax  []float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// WeatherConfig wires the weather tool's HTTP transport. BaseURL and Client
// are injectable for tests.
type WeatherConfig struct {
	BaseURL string
	Client  *http.Client
}

const openMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// NewWeatherTool fetches current conditions and an optional daily forecast
// from Open-Meteo for a known city.
func NewWeatherTool(cfg WeatherConfig) Definition {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openMeteoBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 12 * time.Second}
	}
	return Definition{
		Name:        "weather_get",
		Description: "Get current weather and daily forecast for a city. Requires a location; date is optional (YYYY-MM-DD).",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"location": {"type": "string"},
				"date": {"type": "string"}
			},
			"required": ["location"]
		}`),
		Timeout: 15 * time.Second,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, *models.ToolError) {
			location, _ := args["location"].(string)
			location = strings.TrimSpace(location)
			if location == "" {
				return nil, &models.ToolError{
					Code:    models.ErrorCodeInvalidInput,
					Message: "location is required",
				}
			}
			coords, ok := cityCoordinates[strings.ToLower(location)]
			if !ok {
				return nil, &models.ToolError{
					Code:    models.ErrorCodeNotFound,
					Message: fmt.Sprintf("unknown city %q", location),
				}
			}

			q := url.Values{}
			q.Set("latitude", fmt.Sprintf("%.2f", coords.Lat))
			q.Set("longitude", fmt.Sprintf("%.2f", coords.Lon))
			q.Set("current_weather", "true")
			q.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode,precipitation_probability_max")
			q.Set("timezone", "auto")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"?"+q.Encode(), nil)
			if err != nil {
				return nil, &models.ToolError{Code: models.ErrorCodeInternal, Message: err.Error(), Retryable: true}
			}
			resp, err := cfg.Client.Do(req)
			if err != nil {
				return nil, &models.ToolError{
					Code:      models.ErrorCodeNetwork,
					Message:   fmt.Sprintf("weather request failed: %v", err),
					Retryable: true,
				}
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, &models.ToolError{Code: models.ErrorCodeRateLimit, Message: "weather API rate limited", Retryable: true}
			}
			if resp.StatusCode != http.StatusOK {
				return nil, &models.ToolError{
					Code:      models.ErrorCodeNetwork,
					Message:   fmt.Sprintf("weather API returned %d", resp.StatusCode),
					Retryable: true,
				}
			}

			var body openMeteoResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return nil, &models.ToolError{Code: models.ErrorCodeNetwork, Message: "malformed weather response", Retryable: true}
			}

			data := map[string]any{
				"location":    location,
				"coordinates": map[string]any{"latitude": coords.Lat, "longitude": coords.Lon},
				"current": map[string]any{
					"temperature":         body.CurrentWeather.Temperature,
					"weather_code":        body.CurrentWeather.WeatherCode,
					"weather_description": describeWeatherCode(body.CurrentWeather.WeatherCode),
				},
			}

			if date, _ := args["date"].(string); date != "" {
				data["query_date"] = date
				if day := forecastFor(&body, date); day != nil {
					data["daily"] = day
				}
			}
			return data, nil
		},
	}
}

func forecastFor(body *openMeteoResponse, date string) map[string]any {
	for i, d := range body.Daily.Time {
		if d != date {
			continue
		}
		day := map[string]any{"date": d}
		if i < len(body.Daily.TempMax) {
			day["temperature_max"] = body.Daily.TempMax[i]
		}
		if i < len(body.Daily.TempMin) {
			day["temperature_min"] = body.Daily.TempMin[i]
		}
		if i < len(body.Daily.WeatherCode) {
			day["weather_code"] = body.Daily.WeatherCode[i]
			day["weather_description"] = describeWeatherCode(body.Daily.WeatherCode[i])
		}
		if i < len(body.Daily.PrecipProbMax) {
			day["precipitation_probability_max"] = body.Daily.PrecipProbMax[i]
		}
		return day
	}
	return nil
}
