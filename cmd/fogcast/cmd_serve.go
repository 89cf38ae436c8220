package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/fogcast-backend/internal/api/http"
	"github.com/i474232898/fogcast-backend/internal/config"
	"github.com/i474232898/fogcast-backend/internal/influx"
	"github.com/i474232898/fogcast-backend/internal/ingest"
	"github.com/i474232898/fogcast-backend/internal/logging"
	"github.com/i474232898/fogcast-backend/internal/metrics"
	"github.com/i474232898/fogcast-backend/internal/scheduler"
	"github.com/i474232898/fogcast-backend/internal/store"
	"github.com/i474232898/fogcast-backend/internal/weather"
	"github.com/i474232898/fogcast-backend/internal/weather/providers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, the ingest scheduler and the MQTT subscriber",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.New(cfg, appName)
	if cfg.EnvFileErr != nil {
		log.Debug("no .env file loaded, using process environment", "error", cfg.EnvFileErr)
	}

	m := metrics.New()

	// Shared HTTP client for outbound provider calls.
	httpCfg := providers.HTTPClientConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.DefaultBackoff,
		Metrics: m,
	}

	coords, err := providers.ResolveCoordinates(cfg.GeocoderAPIKey, cfg.OpenMeteoCity, cfg.OpenMeteoCountry, providers.Konstanz)
	if err != nil {
		log.Warn("geocoding failed, using default coordinates", "error", err)
	}

	conn := newInflux(cfg)
	defer conn.Close()

	series := influx.NewSeries(conn, conn, influx.Buckets{
		Forecast:  cfg.Influx.Bucket,
		Station:   cfg.Influx.StationBucket,
		Benchmark: cfg.Influx.BenchmarkBucket,
	}, influx.WithLogger(log))

	memStore := store.NewMemoryStore(cfg.CacheMaxEntries, cfg.StoreMaxAge)

	// Core service orchestrating providers, InfluxDB and the live cache.
	service := weather.NewService(memStore, weather.Sources{
		Observations: providers.NewDWD(httpCfg, "", cfg.DWDStationID),
		Gauges:       providers.NewPegelOnline(httpCfg, ""),
		Archive:      providers.NewOpenMeteo(httpCfg, "", coords),
		Series:       series,
	}, weather.WithLogger(log), weather.WithLiveTTL(cfg.CacheTTL))

	stations := make([]weather.Station, 0, len(cfg.IngestStations))
	for _, key := range cfg.IngestStations {
		st, err := weather.StationByKey(key)
		if err != nil {
			return fmt.Errorf("INGEST_STATIONS: %d: %w", key, err)
		}
		stations = append(stations, st)
	}

	sched := scheduler.New(stations, cfg.FetchInterval, service, m, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MQTT.Enabled() {
		sub := ingest.NewSubscriber(ingest.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
		}, service, m, log)
		go func() {
			if err := sub.Connect(ctx); err != nil {
				log.Error("mqtt connect failed", "error", err)
			}
		}()
		defer sub.Disconnect()
	}

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Cold DWD history requests download several archives.
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: httpapi.ErrorHandler(log),
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	httpapi.RegisterRoutes(app, service, httpapi.Options{
		APIKey:  cfg.APIKey,
		Metrics: m,
		Pinger:  conn,
		Logger:  log,
	})

	go func() {
		log.Info("starting http server", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
			stop()
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	log.Info("shutdown complete")
	return nil
}

func newInflux(cfg *config.AppConfig) *influx.Conn {
	return influx.Connect(influx.Config{
		URL:         cfg.Influx.URL,
		Token:       cfg.Influx.Token,
		Org:         cfg.Influx.Org,
		Timeout:     cfg.Influx.Timeout,
		InsecureTLS: cfg.Influx.InsecureTLS,
	})
}

