package weather

import (
	"time"

	"github.com/i474232898/fogcast-backend/internal/serialize"
)

// Column is a declared field of a tabular result.
type Column struct {
	serialize.Field
	Required bool
}

// Layout is the ordered column table of a Row.
type Layout []Column

func required(name string, kind serialize.Kind) Column {
	return Column{Field: serialize.F(name, kind), Required: true}
}

func optional(name string, kind serialize.Kind) Column {
	return Column{Field: serialize.F(name, kind)}
}

// Measured forecast variables shared by forecasts, archives and benchmarks.
var forecastVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"dew_point_2m",
	"surface_pressure",
	"cloud_cover",
	"precipitation",
	"wind_speed_10m",
}

var (
	// ForecastLayout covers pivoted forecast rows. date is the model run.
	ForecastLayout = buildLayout(
		[]Column{
			optional("date", serialize.Timestamp),
			required("forecast_date", serialize.Timestamp),
			required("model", serialize.Plain),
		},
		forecastVariables,
		optional("weather_code", serialize.Integer),
		optional("fog", serialize.Integer),
	)

	// ArchiveLayout covers hourly measured values for one model.
	ArchiveLayout = buildLayout(
		[]Column{
			required("date", serialize.Timestamp),
			required("model", serialize.Plain),
		},
		forecastVariables,
		optional("weather_code", serialize.Integer),
		optional("fog", serialize.Integer),
	)

	// BenchmarkLayout covers forecast error scores per model and lead time.
	BenchmarkLayout = buildLayout(
		[]Column{
			required("model", serialize.Plain),
			required("forecast_date", serialize.Timestamp),
			optional("lead_time", serialize.Integer),
		},
		forecastVariables,
	)

	// StationReadingLayout covers samples of the project's weather station.
	StationReadingLayout = Layout{
		required("time", serialize.Timestamp),
		optional("temperature", serialize.Decimal),
		optional("water_temperature", serialize.Decimal),
		optional("humidity", serialize.Decimal),
	}
)

func buildLayout(head []Column, decimals []string, tail ...Column) Layout {
	layout := make(Layout, 0, len(head)+len(decimals)+len(tail))
	layout = append(layout, head...)
	for _, name := range decimals {
		layout = append(layout, optional(name, serialize.Decimal))
	}
	return append(layout, tail...)
}

// Row is a tabular result bound to a declared layout.
type Row struct {
	layout Layout
	values map[string]any
}

// NewRow copies the declared columns out of values. Optional columns that are
// missing become null; missing required columns stay missing and fail
// serialization.
func NewRow(layout Layout, values map[string]any) Row {
	row := Row{layout: layout, values: make(map[string]any, len(layout))}
	for _, c := range layout {
		v, ok := values[c.Name]
		if !ok && c.Required {
			continue
		}
		row.values[c.Name] = v
	}
	return row
}

// NewForecastRow binds values to layout and derives the fog flag.
func NewForecastRow(layout Layout, values map[string]any) Row {
	return NewRow(layout, WithFog(values))
}

func (r Row) Fields() []serialize.Field {
	fields := make([]serialize.Field, len(r.layout))
	for i, c := range r.layout {
		fields[i] = c.Field
	}
	return fields
}

func (r Row) FieldValue(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Time reads a timestamp column stored as time.Time.
func (r Row) Time(name string) (time.Time, bool) {
	t, ok := r.values[name].(time.Time)
	return t, ok
}
