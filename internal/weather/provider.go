package weather

import (
	"context"
	"time"
)

// Observations abstracts the national weather service station data.
type Observations interface {
	LiveData(ctx context.Context) ([]Record, error)
	Temperature(ctx context.Context, start, end time.Time, freq Frequency) ([]Record, error)
	FogCount(ctx context.Context, start, end time.Time, freq Frequency) ([]Record, error)
}

// Gauges abstracts the hydrological gauge service.
type Gauges interface {
	WaterLevel(ctx context.Context, station Station, period Period) ([]Record, error)
}

// HourlyArchive abstracts a weather API serving measured hourly values per model.
type HourlyArchive interface {
	Hourly(ctx context.Context, model string, day time.Time) ([]Row, error)
}

// Sample is one raw point of a stored series.
type Sample struct {
	At    time.Time
	Value any
}

// TimeSeries is the contract of the time-series database layer.
type TimeSeries interface {
	Models(ctx context.Context) ([]string, error)
	Forecasts(ctx context.Context, model string, at time.Time) ([]Row, error)
	CurrentForecast(ctx context.Context, model string) ([]Row, error)
	LatestBenchmark(ctx context.Context) ([]Row, error)

	WaterLevels(ctx context.Context, station Station, start, stop time.Time, window Window) ([]Sample, error)
	WriteWaterLevels(ctx context.Context, station Station, records []Record) error

	SaveStationReading(ctx context.Context, reading StationReading) error
	StationReadings(ctx context.Context, start, stop time.Time) ([]Row, error)
}

// Store keeps fetched live snapshots for reuse and history.
type Store interface {
	SaveSnapshot(key string, snapshot Snapshot)
	GetLatest(key string) (Snapshot, error)
	GetRange(key string, from, to time.Time) ([]Snapshot, error)
}
