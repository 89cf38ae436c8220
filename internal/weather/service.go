package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/fogcast-backend/internal/serialize"
)

const liveKey = "live"

// Sources bundles the upstream collaborators of the Service.
type Sources struct {
	Observations Observations
	Gauges       Gauges
	Archive      HourlyArchive
	Series       TimeSeries
}

// Service orchestrates providers, the time-series layer and the live cache.
type Service struct {
	store   Store
	src     Sources
	logger  *slog.Logger
	liveTTL time.Duration
	now     func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithLiveTTL sets how long a live snapshot is served before refetching.
func WithLiveTTL(d time.Duration) ServiceOption {
	return func(s *Service) { s.liveTTL = d }
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(store Store, src Sources, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		src:     src,
		logger:  slog.Default(),
		liveTTL: time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LiveData returns the latest weather observations plus the newest Rhine
// water level, reusing a cached snapshot while it is fresh.
func (s *Service) LiveData(ctx context.Context) ([]Record, error) {
	if snap, err := s.store.GetLatest(liveKey); err == nil && s.now().Sub(snap.FetchedAt) < s.liveTTL {
		return snap.Measurements, nil
	}
	snap, err := s.RefreshLive(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Measurements, nil
}

// RefreshLive fetches observations and gauge data concurrently and stores a
// new snapshot. Nothing is stored unless both sources succeed.
func (s *Service) RefreshLive(ctx context.Context) (Snapshot, error) {
	var (
		wg                 sync.WaitGroup
		observed, gauge    []Record
		observedErr, gaErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		observed, observedErr = s.src.Observations.LiveData(ctx)
	}()
	go func() {
		defer wg.Done()
		gauge, gaErr = s.src.Gauges.WaterLevel(ctx, KonstanzRhein, Last24Hours)
	}()
	wg.Wait()

	if observedErr != nil || gaErr != nil {
		err := errors.Join(wrapIf("live observations", observedErr), wrapIf("live water level", gaErr))
		s.logger.Error("live data refresh failed", "error", err)
		return Snapshot{}, err
	}

	// One value per measurement; the gauge series collapses to its newest reading.
	measurements := LatestByName(append(append(make([]Record, 0, len(observed)+len(gauge)), observed...), gauge...))

	snap := Snapshot{FetchedAt: s.now().UTC(), Measurements: measurements}
	s.store.SaveSnapshot(liveKey, snap)
	s.logger.Debug("live data refreshed", "measurements", len(measurements))
	return snap, nil
}

// LiveHistory returns the live snapshots fetched between from and to.
func (s *Service) LiveHistory(from, to time.Time) ([]Snapshot, error) {
	if to.Before(from) {
		return nil, invalidf("to must not be before from")
	}
	return s.store.GetRange(liveKey, from, to)
}

// TemperatureHistory returns air temperatures at daily, hourly or 10-minute resolution.
func (s *Service) TemperatureHistory(ctx context.Context, start, stop time.Time, freq Frequency) ([]Record, error) {
	switch freq {
	case Daily, Hourly, TenMinutes:
	default:
		return nil, fmt.Errorf("%w: frequency must be daily, hourly or 10-minutes", ErrUnsupportedFrequency)
	}
	if err := checkRange(start, stop); err != nil {
		return nil, err
	}
	return s.src.Observations.Temperature(ctx, start, stop, freq)
}

// FogCountHistory returns the number of fog days per month or year.
func (s *Service) FogCountHistory(ctx context.Context, start, stop time.Time, freq Frequency) ([]Record, error) {
	switch freq {
	case Monthly, Yearly:
	default:
		return nil, fmt.Errorf("%w: frequency must be either monthly or yearly", ErrUnsupportedFrequency)
	}
	if err := checkRange(start, stop); err != nil {
		return nil, err
	}
	return s.src.Observations.FogCount(ctx, start, stop, freq)
}

// WaterLevel returns the last 31 days of measurements for a station key.
func (s *Service) WaterLevel(ctx context.Context, key int) ([]Record, error) {
	station, err := StationByKey(key)
	if err != nil {
		return nil, err
	}
	return s.src.Gauges.WaterLevel(ctx, station, Last31Days)
}

// WaterLevelSummary condenses the last 31 days of a station.
func (s *Service) WaterLevelSummary(ctx context.Context, key int) (WaterLevelSummary, error) {
	station, err := StationByKey(key)
	if err != nil {
		return WaterLevelSummary{}, err
	}
	records, err := s.src.Gauges.WaterLevel(ctx, station, Last31Days)
	if err != nil {
		return WaterLevelSummary{}, err
	}
	return SummarizeWaterLevels(station, records), nil
}

// ArchiveWaterLevel reads stored water levels. Raw samples keep their
// timestamps; monthly and yearly means are labelled with the first day of
// their period.
func (s *Service) ArchiveWaterLevel(ctx context.Context, key int, start, stop time.Time, window Window) ([]serialize.Serializable, error) {
	station, err := StationByKey(key)
	if err != nil {
		return nil, err
	}
	if err := checkRange(start, stop); err != nil {
		return nil, err
	}

	samples, err := s.src.Series.WaterLevels(ctx, station, start, stop, window)
	if err != nil {
		return nil, err
	}

	out := make([]serialize.Serializable, 0, len(samples))
	for _, sample := range samples {
		var (
			rec serialize.Serializable
			err error
		)
		switch window {
		case WindowMonthly, WindowYearly:
			rec, err = NewDailyRecord(NameWaterLevel, periodStart(sample.At, window), sample.Value, GaugeQuality, WithUnit(UnitCentimeter))
		default:
			rec, err = NewRecord(NameWaterLevel, sample.At, sample.Value, GaugeQuality, WithUnit(UnitCentimeter))
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func periodStart(t time.Time, window Window) time.Time {
	t = t.UTC()
	if window == WindowYearly {
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Archive returns measured hourly values of one model for the day containing at.
func (s *Service) Archive(ctx context.Context, model string, at time.Time) ([]Row, error) {
	if strings.TrimSpace(model) == "" {
		return nil, invalidf("model_id is required")
	}
	return s.src.Archive.Hourly(ctx, model, at.UTC())
}

// Forecasts returns every stored run of model for the forecast instant at.
func (s *Service) Forecasts(ctx context.Context, model string, at time.Time) ([]Row, error) {
	if strings.TrimSpace(model) == "" {
		return nil, invalidf("model_id is required")
	}
	return s.src.Series.Forecasts(ctx, model, at.UTC())
}

// CurrentForecast returns the newest run of model, without hours already past.
func (s *Service) CurrentForecast(ctx context.Context, model string) ([]Row, error) {
	if strings.TrimSpace(model) == "" {
		return nil, invalidf("model_id is required")
	}
	rows, err := s.src.Series.CurrentForecast(ctx, model)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data for requested forecast date", ErrNoData)
	}

	now := s.now().UTC()
	upcoming := make([]Row, 0, len(rows))
	for _, row := range rows {
		if t, ok := row.Time("forecast_date"); ok && t.Before(now) {
			continue
		}
		upcoming = append(upcoming, row)
	}
	return upcoming, nil
}

// Models lists the forecast models present in the time-series database.
func (s *Service) Models(ctx context.Context) ([]string, error) {
	return s.src.Series.Models(ctx)
}

// Benchmark returns the newest forecast error scores.
func (s *Service) Benchmark(ctx context.Context) ([]Row, error) {
	return s.src.Series.LatestBenchmark(ctx)
}

// SaveStationReading stores one weather station sample.
func (s *Service) SaveStationReading(ctx context.Context, reading StationReading) error {
	if reading.Timestamp.IsZero() {
		return invalidf("timestamp is required")
	}
	return s.src.Series.SaveStationReading(ctx, reading)
}

// StationReadings returns weather station samples between start and stop.
func (s *Service) StationReadings(ctx context.Context, start, stop time.Time) ([]Row, error) {
	if !start.Before(stop) {
		return nil, invalidf("Start time must be before stop time")
	}
	return s.src.Series.StationReadings(ctx, start, stop)
}

// Stations lists the water-level gauges.
func (s *Service) Stations() []Station {
	return Stations()
}

// IngestWaterLevels copies the last day of gauge measurements into the
// time-series database and returns the number of points written.
func (s *Service) IngestWaterLevels(ctx context.Context, station Station) (int, error) {
	records, err := s.src.Gauges.WaterLevel(ctx, station, Last24Hours)
	if err != nil {
		return 0, fmt.Errorf("fetch water level for %s: %w", station.Name, err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.src.Series.WriteWaterLevels(ctx, station, records); err != nil {
		return 0, fmt.Errorf("write water level for %s: %w", station.Name, err)
	}
	return len(records), nil
}

func checkRange(start, stop time.Time) error {
	if stop.Before(start) {
		return invalidf("stop must not be before start")
	}
	return nil
}

func wrapIf(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
