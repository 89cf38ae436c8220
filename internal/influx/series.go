package influx

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

// DefaultBatchSize bounds the number of points per write request.
const DefaultBatchSize = 5000

// Buckets names the buckets used by the backend.
type Buckets struct {
	Forecast  string // forecasts and water levels
	Station   string // weather station readings
	Benchmark string // forecast error scores
}

// Series implements weather.TimeSeries.
type Series struct {
	q         Querier
	w         Writer
	buckets   Buckets
	batchSize int
	logger    *slog.Logger
}

// Option customises a Series.
type Option func(*Series)

func WithBatchSize(n int) Option {
	return func(s *Series) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Series) { s.logger = l }
}

// NewSeries creates the time-series layer on top of q and w.
func NewSeries(q Querier, w Writer, buckets Buckets, opts ...Option) *Series {
	s := &Series{
		q:         q,
		w:         w,
		buckets:   buckets,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Models lists the forecast models present in the forecast bucket.
func (s *Series) Models(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, ModelsQuery(s.buckets.Forecast))
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(rows))
	for _, row := range rows {
		if v, ok := row["_value"].(string); ok {
			models = append(models, v)
		}
	}
	return models, nil
}

func (s *Series) Forecasts(ctx context.Context, model string, at time.Time) ([]weather.Row, error) {
	rows, err := s.q.Query(ctx, ForecastsQuery(s.buckets.Forecast, model, at))
	if err != nil {
		return nil, err
	}
	return forecastRows(rows)
}

func (s *Series) CurrentForecast(ctx context.Context, model string) ([]weather.Row, error) {
	rows, err := s.q.Query(ctx, CurrentForecastQuery(s.buckets.Forecast, model))
	if err != nil {
		return nil, err
	}
	return forecastRows(rows)
}

func forecastRows(rows []map[string]any) ([]weather.Row, error) {
	out := make([]weather.Row, 0, len(rows))
	for _, values := range rows {
		values, err := normalize(values)
		if err != nil {
			return nil, err
		}
		out = append(out, weather.NewForecastRow(weather.ForecastLayout, values))
	}
	return out, nil
}

// LatestBenchmark returns the rows of the newest forecast_date scored in the last day.
func (s *Series) LatestBenchmark(ctx context.Context) ([]weather.Row, error) {
	rows, err := s.q.Query(ctx, BenchmarkQuery(s.buckets.Benchmark))
	if err != nil {
		return nil, err
	}

	var (
		normalized = make([]map[string]any, 0, len(rows))
		newest     time.Time
	)
	for _, values := range rows {
		values, err := normalize(values)
		if err != nil {
			return nil, err
		}
		if t, ok := values["forecast_date"].(time.Time); ok && t.After(newest) {
			newest = t
		}
		normalized = append(normalized, values)
	}

	out := make([]weather.Row, 0, len(normalized))
	for _, values := range normalized {
		if t, ok := values["forecast_date"].(time.Time); ok && t.Equal(newest) {
			out = append(out, weather.NewRow(weather.BenchmarkLayout, values))
		}
	}
	return out, nil
}

// WaterLevels returns raw or window-averaged samples of one gauge.
func (s *Series) WaterLevels(ctx context.Context, station weather.Station, start, stop time.Time, window weather.Window) ([]weather.Sample, error) {
	flux, err := WaterLevelQuery(s.buckets.Forecast, station.Number, start, stop, window)
	if err != nil {
		return nil, err
	}
	rows, err := s.q.Query(ctx, flux)
	if err != nil {
		return nil, err
	}

	samples := make([]weather.Sample, 0, len(rows))
	for _, row := range rows {
		at, ok := row["_time"].(time.Time)
		if !ok {
			return nil, fmt.Errorf("water level row without _time: %v", row)
		}
		samples = append(samples, weather.Sample{At: at.UTC(), Value: row["_value"]})
	}
	return samples, nil
}

// WriteWaterLevels stores records as water_level points in batches.
func (s *Series) WriteWaterLevels(ctx context.Context, station weather.Station, records []weather.Record) error {
	batch := make([]*write.Point, 0, min(len(records), s.batchSize))
	written := 0
	for _, rec := range records {
		batch = append(batch, WaterLevelPoint(station, rec))
		if len(batch) == s.batchSize {
			if err := s.w.Write(ctx, s.buckets.Forecast, batch...); err != nil {
				return err
			}
			written += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := s.w.Write(ctx, s.buckets.Forecast, batch...); err != nil {
			return err
		}
		written += len(batch)
	}
	s.logger.Debug("water levels written", "station", station.Name, "points", written)
	return nil
}

// WaterLevelPoint converts a gauge record into a line-protocol point.
func WaterLevelPoint(station weather.Station, rec weather.Record) *write.Point {
	unit := rec.Unit()
	if unit == "" {
		unit = weather.UnitCentimeter
	}
	return influxdb2.NewPoint(
		"water_level",
		map[string]string{
			"unit":         unit,
			"station_id":   strconv.Itoa(station.Number),
			"station_name": station.Name,
		},
		map[string]interface{}{"value": rec.Value().InexactFloat64()},
		rec.Date(),
	)
}

func (s *Series) SaveStationReading(ctx context.Context, r weather.StationReading) error {
	p := influxdb2.NewPoint(
		"weather_station",
		nil,
		map[string]interface{}{
			"temperature":       r.Temperature,
			"water_temperature": r.WaterTemperature,
			"humidity":          r.Humidity,
		},
		r.Timestamp.UTC(),
	)
	return s.w.Write(ctx, s.buckets.Station, p)
}

func (s *Series) StationReadings(ctx context.Context, start, stop time.Time) ([]weather.Row, error) {
	if !start.Before(stop) {
		return nil, &weather.ValidationError{Msg: "Start time must be before stop time"}
	}
	rows, err := s.q.Query(ctx, StationReadingsQuery(s.buckets.Station, start, stop))
	if err != nil {
		return nil, err
	}
	out := make([]weather.Row, 0, len(rows))
	for _, values := range rows {
		values, err := normalize(values)
		if err != nil {
			return nil, err
		}
		out = append(out, weather.NewRow(weather.StationReadingLayout, values))
	}
	return out, nil
}

// internal columns of a query result that never reach a response.
var internalColumns = []string{"result", "table", "_start", "_stop", "_measurement"}

// normalize renames _time to date and _value to value, drops Flux
// bookkeeping columns and parses forecast_date tags into times.
func normalize(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	for _, k := range internalColumns {
		delete(out, k)
	}
	if v, ok := out["_time"]; ok {
		out["date"] = v
		delete(out, "_time")
	}
	if v, ok := out["_value"]; ok {
		out["value"] = v
		delete(out, "_value")
	}
	if s, ok := out["forecast_date"].(string); ok {
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("forecast_date %q: %w", s, err)
		}
		out["forecast_date"] = t.UTC()
	}
	return out, nil
}
