package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/fogcast-backend/internal/metrics"
	"github.com/i474232898/fogcast-backend/internal/weather"
)

const jobTimeout = 2 * time.Minute

// Ingester is the part of weather.Service driven by the scheduler.
type Ingester interface {
	IngestWaterLevels(ctx context.Context, station weather.Station) (int, error)
	RefreshLive(ctx context.Context) (weather.Snapshot, error)
}

// Scheduler periodically copies gauge data into the time-series database and
// keeps the live-data cache warm.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Ingester
	stations  []weather.Station
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(stations []weather.Station, interval time.Duration, service Ingester, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		stations:  stations,
		interval:  interval,
		metrics:   m,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.Run); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval_minutes", minutes, "stations", len(s.stations))
	return nil
}

// Run executes one ingest round: every station concurrently, plus a live
// cache refresh.
func (s *Scheduler) Run() {
	s.logger.Debug("running ingest job")

	var wg sync.WaitGroup
	for _, station := range s.stations {
		wg.Add(1)
		go func(station weather.Station) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			n, err := s.service.IngestWaterLevels(ctx, station)
			if err != nil {
				s.metrics.JobRun("water_level", metrics.OutcomeError)
				s.logger.Error("water level ingest failed", "station", station.Name, "error", err)
				return
			}
			s.metrics.JobRun("water_level", metrics.OutcomeSuccess)
			s.metrics.AddIngested("scheduler", n)
			s.logger.Info("water levels ingested", "station", station.Name, "points", n)
		}(station)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if _, err := s.service.RefreshLive(ctx); err != nil {
			s.metrics.JobRun("live_data", metrics.OutcomeError)
			s.logger.Warn("live data refresh failed", "error", err)
			return
		}
		s.metrics.JobRun("live_data", metrics.OutcomeSuccess)
	}()

	wg.Wait()
	s.logger.Debug("completed ingest job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
