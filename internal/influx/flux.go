package influx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

const fluxTimeLayout = "2006-01-02T15:04:05Z"

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`)

// quote renders s as a Flux string literal.
func quote(s string) string {
	return `"` + fluxEscaper.Replace(s) + `"`
}

func fluxTime(t time.Time) string {
	return t.UTC().Format(fluxTimeLayout)
}

// ModelsQuery lists the model tag values of the forecast measurement.
func ModelsQuery(bucket string) string {
	return fmt.Sprintf(`import "influxdata/influxdb/schema"
schema.measurementTagValues(
    bucket: %s,
    measurement: "forecast",
    tag: "model",
)`, quote(bucket))
}

// ForecastsQuery selects every run of model, within 14 days before at, that
// forecast the instant at.
func ForecastsQuery(bucket, model string, at time.Time) string {
	ts := fluxTime(at)
	return fmt.Sprintf(`import "date"
from(bucket: %s)
    |> range(start: date.sub(from: %s, d: 14d), stop: %s)
    |> filter(fn: (r) => r["_measurement"] == "forecast")
    |> filter(fn: (r) => r["forecast_date"] == %s)
    |> filter(fn: (r) => r["model"] == %s)
    |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
    |> sort(columns: ["_time"])`, quote(bucket), ts, ts, quote(ts), quote(model))
}

// CurrentForecastQuery selects the newest run of model written in the last two hours.
func CurrentForecastQuery(bucket, model string) string {
	return fmt.Sprintf(`from(bucket: %s)
    |> range(start: -2h)
    |> filter(fn: (r) => r["_measurement"] == "forecast")
    |> filter(fn: (r) => r["model"] == %s)
    |> last()
    |> pivot(rowKey: ["forecast_date"], columnKey: ["_field"], valueColumn: "_value")
    |> sort(columns: ["forecast_date"])
    |> drop(columns: ["_start", "_stop", "_time", "_measurement"])`, quote(bucket), quote(model))
}

// WaterLevelQuery selects water levels of one gauge, optionally averaged per
// window. Window means are stamped with the window start.
func WaterLevelQuery(bucket string, stationNumber int, start, stop time.Time, window weather.Window) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `from(bucket: %s)
    |> range(start: %s, stop: %s)
    |> filter(fn: (r) => r["_measurement"] == "water_level")
    |> filter(fn: (r) => r["_field"] == "value")
    |> filter(fn: (r) => r["station_id"] == %s)`,
		quote(bucket), fluxTime(start), fluxTime(stop), quote(strconv.Itoa(stationNumber)))

	switch window {
	case weather.WindowNone:
	case weather.WindowMonthly, weather.WindowYearly:
		fmt.Fprintf(&b, `
    |> aggregateWindow(every: %s, fn: mean, createEmpty: false, timeSrc: "_start")`, window)
	default:
		return "", fmt.Errorf("unsupported aggregation window %q", window)
	}

	b.WriteString(`
    |> drop(columns: ["_measurement", "_field", "_start", "_stop", "station_id"])
    |> sort(columns: ["_time"])`)
	return b.String(), nil
}

// StationReadingsQuery selects weather station samples, one row per timestamp.
func StationReadingsQuery(bucket string, start, stop time.Time) string {
	return fmt.Sprintf(`from(bucket: %s)
    |> range(start: %s, stop: %s)
    |> filter(fn: (r) => r["_measurement"] == "weather_station")
    |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
    |> sort(columns: ["_time"])
    |> drop(columns: ["_start", "_stop", "_measurement"])
    |> rename(columns: {_time: "time"})`, quote(bucket), fluxTime(start), fluxTime(stop))
}

// BenchmarkQuery selects the forecast error scores of the last day.
func BenchmarkQuery(bucket string) string {
	return fmt.Sprintf(`from(bucket: %s)
    |> range(start: -1d)
    |> filter(fn: (r) => r["_measurement"] == "forecast_error")
    |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
    |> keep(columns: ["model", "cloud_cover", "dew_point_2m", "precipitation",
                      "relative_humidity_2m", "surface_pressure", "temperature_2m",
                      "lead_time", "forecast_date", "wind_speed_10m"])`, quote(bucket))
}
