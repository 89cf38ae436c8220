package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/i474232898/fogcast-backend/internal/metrics"
	"github.com/i474232898/fogcast-backend/internal/serialize"
	"github.com/i474232898/fogcast-backend/internal/weather"
)

const (
	spacedLayout = "2006-01-02 15:04:05"
	isoLayout    = "2006-01-02T15:04:05"
	isoZLayout   = "2006-01-02T15:04:05Z"
)

// Service is the part of weather.Service served over HTTP.
type Service interface {
	LiveData(ctx context.Context) ([]weather.Record, error)
	LiveHistory(from, to time.Time) ([]weather.Snapshot, error)
	TemperatureHistory(ctx context.Context, start, stop time.Time, freq weather.Frequency) ([]weather.Record, error)
	FogCountHistory(ctx context.Context, start, stop time.Time, freq weather.Frequency) ([]weather.Record, error)
	WaterLevel(ctx context.Context, key int) ([]weather.Record, error)
	WaterLevelSummary(ctx context.Context, key int) (weather.WaterLevelSummary, error)
	ArchiveWaterLevel(ctx context.Context, key int, start, stop time.Time, window weather.Window) ([]serialize.Serializable, error)
	Archive(ctx context.Context, model string, at time.Time) ([]weather.Row, error)
	Forecasts(ctx context.Context, model string, at time.Time) ([]weather.Row, error)
	CurrentForecast(ctx context.Context, model string) ([]weather.Row, error)
	Models(ctx context.Context) ([]string, error)
	Benchmark(ctx context.Context) ([]weather.Row, error)
	SaveStationReading(ctx context.Context, reading weather.StationReading) error
	StationReadings(ctx context.Context, start, stop time.Time) ([]weather.Row, error)
	Stations() []weather.Station
}

// Pinger reports whether a backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// APIKey guards POST /weatherstation.
	APIKey  string
	Metrics *metrics.Metrics
	// Pinger, when set, is consulted by /health-check.
	Pinger Pinger
	Logger *slog.Logger
}

type handlers struct {
	svc     Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc Service, opts Options) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handlers{svc: svc, metrics: opts.Metrics, logger: opts.Logger}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "fogcast-backend",
		})
	})
	app.Get("/health-check", func(c *fiber.Ctx) error {
		if opts.Pinger != nil {
			if err := opts.Pinger.Ping(c.UserContext()); err != nil {
				h.logger.Warn("health check failed", "error", err)
				return fiber.NewError(fiber.StatusServiceUnavailable, "database unreachable")
			}
		}
		return c.SendString("success")
	})
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
	}

	actual := app.Group("/actual")
	actual.Get("/live-data", h.liveData)
	actual.Get("/live-data/history", h.liveHistory)
	actual.Get("/temperature-history", h.temperatureHistory)
	actual.Get("/fog-count-history", h.fogCountHistory)
	actual.Get("/water-level", h.waterLevel)
	actual.Get("/water-level/summary", h.waterLevelSummary)
	actual.Get("/archive", h.archive)

	app.Get("/archive/water-level", h.archiveWaterLevel)
	app.Get("/forecasts", h.forecasts)
	app.Get("/current-forecast", h.currentForecast)
	app.Get("/models", h.models)
	app.Get("/models/benchmarking", h.benchmark)
	app.Get("/stations", h.stations)

	app.Post("/weatherstation", requireAPIKey(opts.APIKey), h.postStationReading)
	app.Get("/weatherstation", h.stationReadings)
}

func (h *handlers) liveData(c *fiber.Ctx) error {
	records, err := h.svc.LiveData(c.UserContext())
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, records)
}

func (h *handlers) liveHistory(c *fiber.Ctx) error {
	var q liveHistoryQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	from, err := parseInstant("from", q.From)
	if err != nil {
		return err
	}
	to, err := parseInstant("to", q.To)
	if err != nil {
		return err
	}
	snapshots, err := h.svc.LiveHistory(from, to)
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, snapshots)
}

func (h *handlers) temperatureHistory(c *fiber.Ctx) error {
	var q temperatureQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	start, stop, err := parseRange(q.Start, q.Stop, spacedLayout, "YYYY-MM-DD HH:MM:SS")
	if err != nil {
		return err
	}
	records, err := h.svc.TemperatureHistory(c.UserContext(), start, stop, weather.Frequency(q.Frequency))
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, records)
}

func (h *handlers) fogCountHistory(c *fiber.Ctx) error {
	var q fogCountQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	start, stop, err := parseRange(q.Start, q.Stop, spacedLayout, "YYYY-MM-DD HH:MM:SS")
	if err != nil {
		return err
	}
	records, err := h.svc.FogCountHistory(c.UserContext(), start, stop, weather.Frequency(q.Frequency))
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, records)
}

func (h *handlers) waterLevel(c *fiber.Ctx) error {
	var q stationQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	key, _ := strconv.Atoi(q.StationID)
	records, err := h.svc.WaterLevel(c.UserContext(), key)
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, records)
}

func (h *handlers) waterLevelSummary(c *fiber.Ctx) error {
	var q stationQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	key, _ := strconv.Atoi(q.StationID)
	summary, err := h.svc.WaterLevelSummary(c.UserContext(), key)
	if err != nil {
		return err
	}
	out, err := serialize.Serialize(summary)
	if err != nil {
		h.metrics.SerializationFailed(c.Route().Path)
		return err
	}
	return c.JSON(out)
}

func (h *handlers) archive(c *fiber.Ctx) error {
	var q archiveQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	at, err := parseParam("date", q.Date, spacedLayout, "YYYY-MM-DD HH:MM:SS")
	if err != nil {
		return err
	}
	rows, err := h.svc.Archive(c.UserContext(), q.ModelID, at)
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, rows)
}

func (h *handlers) archiveWaterLevel(c *fiber.Ctx) error {
	var q archiveWaterLevelQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	start, stop, err := parseRange(q.Start, q.Stop, isoLayout, "YYYY-MM-DDTHH:MM:SS")
	if err != nil {
		return err
	}
	key, _ := strconv.Atoi(q.StationID)
	items, err := h.svc.ArchiveWaterLevel(c.UserContext(), key, start, stop, windowOf(q.Period))
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, items)
}

func windowOf(period string) weather.Window {
	switch period {
	case "m":
		return weather.WindowMonthly
	case "y":
		return weather.WindowYearly
	}
	return weather.WindowNone
}

func (h *handlers) forecasts(c *fiber.Ctx) error {
	var q forecastsQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	at, err := parseParam("datetime", q.Datetime, isoZLayout, "YYYY-MM-DDTHH:MM:SSZ")
	if err != nil {
		return err
	}
	rows, err := h.svc.Forecasts(c.UserContext(), q.ModelID, at)
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, rows)
}

func (h *handlers) currentForecast(c *fiber.Ctx) error {
	var q modelQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	rows, err := h.svc.CurrentForecast(c.UserContext(), q.ModelID)
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, rows)
}

func (h *handlers) models(c *fiber.Ctx) error {
	models, err := h.svc.Models(c.UserContext())
	if err != nil {
		return err
	}
	if models == nil {
		models = []string{}
	}
	return c.JSON(models)
}

func (h *handlers) benchmark(c *fiber.Ctx) error {
	rows, err := h.svc.Benchmark(c.UserContext())
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, rows)
}

func (h *handlers) stations(c *fiber.Ctx) error {
	return writeAll(c, h.metrics, h.svc.Stations())
}

func (h *handlers) postStationReading(c *fiber.Ctx) error {
	reading, err := weather.ParseStationReading(c.Body())
	if err != nil {
		return err
	}
	if err := h.svc.SaveStationReading(c.UserContext(), reading); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Data received successfully"})
}

func (h *handlers) stationReadings(c *fiber.Ctx) error {
	var q stationReadingsQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	start, stop, err := parseRange(q.Start, q.Stop, isoZLayout, "YYYY-MM-DDTHH:MM:SSZ")
	if err != nil {
		return err
	}
	rows, err := h.svc.StationReadings(c.UserContext(), start, stop)
	if err != nil {
		return err
	}
	return writeAll(c, h.metrics, rows)
}

func requireAPIKey(key string) fiber.Handler {
	want := []byte("Bearer " + key)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(fiber.HeaderAuthorization))
		if key == "" || subtle.ConstantTimeCompare(got, want) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized: Invalid API key.")
		}
		return c.Next()
	}
}

func writeAll[T serialize.Serializable](c *fiber.Ctx, m *metrics.Metrics, items []T) error {
	out, err := serialize.SerializeAll(items)
	if err != nil {
		m.SerializationFailed(c.Route().Path)
		return err
	}
	return c.JSON(out)
}
