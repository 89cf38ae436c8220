package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

const openMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// Coordinates of a forecast location.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Konstanz is the default location of the archive.
var Konstanz = Coordinates{Lat: 47.6952, Lon: 9.1307}

var openMeteoHourly = []string{
	"temperature_2m",
	"surface_pressure",
	"cloud_cover",
	"precipitation",
	"relative_humidity_2m",
	"dew_point_2m",
	"wind_speed_10m",
	"weather_code",
}

// ResolveCoordinates geocodes city and country with the Google geocoding API.
// Without a key or a city the fallback is returned unchanged.
func ResolveCoordinates(apiKey, city, country string, fallback Coordinates) (Coordinates, error) {
	if apiKey == "" || city == "" {
		return fallback, nil
	}
	geocoder.ApiKey = apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return fallback, fmt.Errorf("geocode %s, %s: %w", city, country, err)
	}
	return Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}, nil
}

// OpenMeteo implements weather.HourlyArchive with the Open-Meteo forecast API.
type OpenMeteo struct {
	upstream
	baseURL string
	coords  Coordinates
}

func NewOpenMeteo(cfg HTTPClientConfig, baseURL string, coords Coordinates) *OpenMeteo {
	if baseURL == "" {
		baseURL = openMeteoBaseURL
	}
	return &OpenMeteo{upstream: newUpstream("openmeteo", cfg), baseURL: baseURL, coords: coords}
}

type openMeteoResponse struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// Hourly returns the hourly values of model for the UTC day containing day.
func (p *OpenMeteo) Hourly(ctx context.Context, model string, day time.Time) ([]weather.Row, error) {
	date := day.UTC().Format("2006-01-02")
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(p.coords.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(p.coords.Lon, 'f', -1, 64))
	values.Set("hourly", strings.Join(openMeteoHourly, ","))
	values.Set("models", model)
	values.Set("start_date", date)
	values.Set("end_date", date)
	values.Set("timezone", "UTC")

	var payload openMeteoResponse
	if err := p.getJSON(ctx, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return nil, err
	}

	var times []string
	if raw, ok := payload.Hourly["time"]; ok {
		if err := json.Unmarshal(raw, &times); err != nil {
			return nil, fmt.Errorf("openmeteo: hourly time: %w", err)
		}
	}

	columns := make(map[string][]*json.Number, len(openMeteoHourly))
	for _, name := range openMeteoHourly {
		raw, ok := payload.Hourly[name]
		if !ok {
			continue
		}
		var col []*json.Number
		if err := json.Unmarshal(raw, &col); err != nil {
			return nil, fmt.Errorf("openmeteo: hourly %s: %w", name, err)
		}
		columns[name] = col
	}

	rows := make([]weather.Row, 0, len(times))
	for i, ts := range times {
		at, err := time.ParseInLocation("2006-01-02T15:04", ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("openmeteo: time %q: %w", ts, err)
		}
		row := map[string]any{"date": at, "model": model}
		for name, col := range columns {
			if i < len(col) && col[i] != nil {
				row[name] = *col[i]
			} else {
				row[name] = nil
			}
		}
		rows = append(rows, weather.NewForecastRow(weather.ArchiveLayout, row))
	}
	return rows, nil
}
