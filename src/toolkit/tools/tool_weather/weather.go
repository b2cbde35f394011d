package tool_weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/parley-chat/parley/src/marker"
	"github.com/parley-chat/parley/src/toolkit"
)

// Tool name constant
const Name = "get_weather"

const description = `Gets the current weather for a location.

Provide the location as a city name, e.g. "Oslo" or "Buenos Aires".
Returns the current temperature and conditions.`

const (
	geocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	forecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// WeatherInput represents the parameters for get_weather
type WeatherInput struct {
	Location string `json:"location" required:"true" description:"City name to get weather for"`
}

type weatherTool struct {
	client *http.Client
	schema *jsonschema.Schema
}

// New creates the get_weather tool.
func New() (toolkit.Tool, error) {
	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(WeatherInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	return &weatherTool{
		client: &http.Client{Timeout: 15 * time.Second},
		schema: &schema,
	}, nil
}

func (t *weatherTool) GetName() string { return Name }

func (t *weatherTool) GetDescription() string { return description }

func (t *weatherTool) GetParameters() *jsonschema.Schema { return t.schema }

// Execute looks the location up and fetches current conditions. All
// failures come back as explanatory text for the model.
func (t *weatherTool) Execute(ctx context.Context, input map[string]any) toolkit.Result {
	location := toolkit.StringField(input, "location", "")
	if location == "" {
		return toolkit.Result{Text: "The location parameter is required, e.g. {\"location\": \"Oslo\"}."}
	}

	place, err := t.geocode(ctx, location)
	if err != nil {
		return toolkit.Result{Text: fmt.Sprintf("Could not find a location named %q: %v", location, err)}
	}

	current, err := t.current(ctx, place.Latitude, place.Longitude)
	if err != nil {
		return toolkit.Result{Text: fmt.Sprintf("Weather lookup for %s failed: %v", place.Name, err)}
	}

	condition := describeWeatherCode(current.WeatherCode)
	text := fmt.Sprintf("Current weather in %s: %.1f°C, %s.", place.Name, current.Temperature, condition)

	snapshot := marker.WeatherPayload{
		Location:   place.Name,
		TempC:      current.Temperature,
		Condition:  condition,
		ObservedAt: current.Time,
	}
	encoded, err := marker.Encode(marker.KindWeather, snapshot)
	if err != nil {
		// Text still answers the question; the marker is best effort.
		return toolkit.Result{Text: text}
	}

	return toolkit.Result{Text: text, Marker: encoded}
}

type place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (t *weatherTool) geocode(ctx context.Context, location string) (*place, error) {
	u := geocodingURL + "?" + url.Values{"name": {location}, "count": {"1"}}.Encode()

	var response struct {
		Results []place `json:"results"`
	}
	if err := t.getJSON(ctx, u, &response); err != nil {
		return nil, err
	}
	if len(response.Results) == 0 {
		return nil, fmt.Errorf("no matches")
	}
	return &response.Results[0], nil
}

type currentWeather struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature_2m"`
	WeatherCode int     `json:"weather_code"`
}

func (t *weatherTool) current(ctx context.Context, lat, lon float64) (*currentWeather, error) {
	u := forecastURL + "?" + url.Values{
		"latitude":  {fmt.Sprintf("%.4f", lat)},
		"longitude": {fmt.Sprintf("%.4f", lon)},
		"current":   {"temperature_2m,weather_code"},
	}.Encode()

	var response struct {
		Current currentWeather `json:"current"`
	}
	if err := t.getJSON(ctx, u, &response); err != nil {
		return nil, err
	}
	return &response.Current, nil
}

func (t *weatherTool) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// describeWeatherCode maps WMO weather codes to short descriptions.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
