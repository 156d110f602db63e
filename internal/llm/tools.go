package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

// ToolFunc executes one tool call. raw is the JSON argument object
// produced by the model, possibly empty.
type ToolFunc func(ctx context.Context, raw json.RawMessage) (string, error)

// ToolSchema is the function-calling declaration sent with chat requests.
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

type FunctionSchema struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ToolRegistry holds callable tools and their wire declarations.
type ToolRegistry struct {
	schemas []ToolSchema
	funcs   map[string]ToolFunc
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{funcs: map[string]ToolFunc{}}
}

// Register adds a tool. params must be a struct value whose fields carry
// json and jsonschema tags; its reflected schema becomes the parameters
// object of the declaration.
func (r *ToolRegistry) Register(name, description string, params any, fn ToolFunc) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	r.schemas = append(r.schemas, ToolSchema{
		Type: "function",
		Function: FunctionSchema{
			Name:        name,
			Description: description,
			Parameters:  reflector.Reflect(params),
		},
	})
	r.funcs[name] = fn
}

func (r *ToolRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.schemas)
}

func (r *ToolRegistry) Schemas() []ToolSchema {
	if r == nil {
		return nil
	}
	return r.schemas
}

// Invoke runs a registered tool with the model-provided arguments.
func (r *ToolRegistry) Invoke(ctx context.Context, name, args string) (string, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	raw := json.RawMessage(args)
	if strings.TrimSpace(args) == "" {
		raw = json.RawMessage("{}")
	}
	return fn(ctx, raw)
}

// DefaultTools builds the standard registry. The weather tool is only
// registered when an OpenWeather key is configured.
func DefaultTools(openWeatherKey string) *ToolRegistry {
	r := NewToolRegistry()
	RegisterTimeTool(r)
	if strings.TrimSpace(openWeatherKey) != "" {
		RegisterWeatherTool(r, openWeatherKey)
	}
	return r
}

const openWeatherBaseURL = "https://api.openweathermap.org/data/3.0/onecall"

type weatherArgs struct {
	Lat     float64 `json:"lat,omitempty" jsonschema:"description=Latitude of the location"`
	Lon     float64 `json:"lon,omitempty" jsonschema:"description=Longitude of the location"`
	Units   string  `json:"units,omitempty" jsonschema:"description=Unit system for temperature values,enum=standard,enum=metric,enum=imperial"`
	Lang    string  `json:"lang,omitempty" jsonschema:"description=Two letter language code for textual fields"`
	Exclude string  `json:"exclude,omitempty" jsonschema:"description=Forecast blocks to omit from the reply"`
}

// RegisterWeatherTool wires the OpenWeather One Call endpoint as a chat
// tool. Coordinates default to Orlando when the model omits them.
func RegisterWeatherTool(r *ToolRegistry, apiKey string) {
	registerWeather(r, apiKey, openWeatherBaseURL)
}

func registerWeather(r *ToolRegistry, apiKey, baseURL string) {
	client := &http.Client{Timeout: 10 * time.Second}
	r.Register("get_weather", "Get the current weather and forecast for a location", weatherArgs{},
		func(ctx context.Context, raw json.RawMessage) (string, error) {
			args := weatherArgs{Lat: 28.5383, Lon: -81.3792, Units: "metric", Lang: "en", Exclude: "minutely"}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode weather arguments: %w", err)
			}

			query := url.Values{}
			query.Set("lat", strconv.FormatFloat(args.Lat, 'f', -1, 64))
			query.Set("lon", strconv.FormatFloat(args.Lon, 'f', -1, 64))
			query.Set("appid", apiKey)
			query.Set("units", args.Units)
			query.Set("lang", args.Lang)
			query.Set("exclude", args.Exclude)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+query.Encode(), nil)
			if err != nil {
				return "", fmt.Errorf("create request: %w", err)
			}
			res, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("fetch weather: %w", err)
			}
			defer res.Body.Close()

			body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
			if err != nil {
				return "", fmt.Errorf("read weather response: %w", err)
			}
			if res.StatusCode != http.StatusOK {
				return "", fmt.Errorf("weather status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
			}
			return string(body), nil
		})
}

type timeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as America/New_York"`
}

// RegisterTimeTool reports the current wall-clock time in a timezone.
func RegisterTimeTool(r *ToolRegistry) {
	r.Register("get_time", "Get the current local time in a timezone", timeArgs{},
		func(ctx context.Context, raw json.RawMessage) (string, error) {
			args := timeArgs{Timezone: "America/New_York"}
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("decode time arguments: %w", err)
			}
			loc, err := time.LoadLocation(args.Timezone)
			if err != nil {
				return "", fmt.Errorf("load timezone %q: %w", args.Timezone, err)
			}
			return time.Now().In(loc).Format("15:04:05"), nil
		})
}
