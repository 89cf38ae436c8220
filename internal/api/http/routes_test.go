package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/fogcast-backend/internal/metrics"
	"github.com/i474232898/fogcast-backend/internal/serialize"
	"github.com/i474232898/fogcast-backend/internal/store"
	"github.com/i474232898/fogcast-backend/internal/weather"
)

type stubService struct {
	records []weather.Record
	rows    []weather.Row
	err     error

	gotStart, gotStop time.Time
	gotFreq           weather.Frequency
	gotKey            int
	gotModel          string
	gotWindow         weather.Window
	saved             []weather.StationReading
}

func (s *stubService) LiveData(ctx context.Context) ([]weather.Record, error) {
	return s.records, s.err
}

func (s *stubService) LiveHistory(from, to time.Time) ([]weather.Snapshot, error) {
	s.gotStart, s.gotStop = from, to
	if s.err != nil {
		return nil, s.err
	}
	return []weather.Snapshot{{FetchedAt: from, Measurements: s.records}}, nil
}

func (s *stubService) TemperatureHistory(ctx context.Context, start, stop time.Time, freq weather.Frequency) ([]weather.Record, error) {
	s.gotStart, s.gotStop, s.gotFreq = start, stop, freq
	return s.records, s.err
}

func (s *stubService) FogCountHistory(ctx context.Context, start, stop time.Time, freq weather.Frequency) ([]weather.Record, error) {
	s.gotStart, s.gotStop, s.gotFreq = start, stop, freq
	return s.records, s.err
}

func (s *stubService) WaterLevel(ctx context.Context, key int) ([]weather.Record, error) {
	s.gotKey = key
	return s.records, s.err
}

func (s *stubService) WaterLevelSummary(ctx context.Context, key int) (weather.WaterLevelSummary, error) {
	s.gotKey = key
	if s.err != nil {
		return weather.WaterLevelSummary{}, s.err
	}
	return weather.SummarizeWaterLevels(weather.KonstanzRhein, s.records), nil
}

func (s *stubService) ArchiveWaterLevel(ctx context.Context, key int, start, stop time.Time, window weather.Window) ([]serialize.Serializable, error) {
	s.gotKey, s.gotStart, s.gotStop, s.gotWindow = key, start, stop, window
	out := make([]serialize.Serializable, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, s.err
}

func (s *stubService) Archive(ctx context.Context, model string, at time.Time) ([]weather.Row, error) {
	s.gotModel, s.gotStart = model, at
	return s.rows, s.err
}

func (s *stubService) Forecasts(ctx context.Context, model string, at time.Time) ([]weather.Row, error) {
	s.gotModel, s.gotStart = model, at
	return s.rows, s.err
}

func (s *stubService) CurrentForecast(ctx context.Context, model string) ([]weather.Row, error) {
	s.gotModel = model
	return s.rows, s.err
}

func (s *stubService) Models(ctx context.Context) ([]string, error) {
	return []string{"icon_d2", "icon_seamless"}, s.err
}

func (s *stubService) Benchmark(ctx context.Context) ([]weather.Row, error) {
	return s.rows, s.err
}

func (s *stubService) SaveStationReading(ctx context.Context, reading weather.StationReading) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, reading)
	return nil
}

func (s *stubService) StationReadings(ctx context.Context, start, stop time.Time) ([]weather.Row, error) {
	s.gotStart, s.gotStop = start, stop
	return s.rows, s.err
}

func (s *stubService) Stations() []weather.Station {
	return weather.Stations()
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func newTestApp(t *testing.T, svc Service, opts Options) *fiber.App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	opts.Logger = logger
	if opts.APIKey == "" {
		opts.APIKey = "secret"
	}
	RegisterRoutes(app, svc, opts)
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte) {
	t.Helper()
	return do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
}

func errorOf(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload["error"]
}

func waterRecord(t *testing.T, at time.Time, value string) weather.Record {
	t.Helper()
	rec, err := weather.NewRecord(weather.NameWaterLevel, at, value, weather.GaugeQuality, weather.WithUnit(weather.UnitCentimeter))
	require.NoError(t, err)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, &stubService{}, Options{})

	code, body := get(t, app, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","service":"fogcast-backend"}`, string(body))

	code, body = get(t, app, "/health-check")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", string(body))

	app = newTestApp(t, &stubService{}, Options{Pinger: failingPinger{}})
	code, body = get(t, app, "/health-check")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "database unreachable", errorOf(t, body))
}

func TestLiveDataSerializesRecords(t *testing.T) {
	at := time.Date(2024, 5, 1, 11, 50, 0, 0, time.UTC)
	svc := &stubService{records: []weather.Record{waterRecord(t, at, "245.30")}}
	app := newTestApp(t, svc, Options{})

	code, body := get(t, app, "/actual/live-data")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"name":"water_level","date":"2024-05-01 11:50:00","value":"245.30","quality":"2.0"}]`, string(body))
}

func TestEmptyResultsAreArrays(t *testing.T) {
	app := newTestApp(t, &stubService{}, Options{})

	code, body := get(t, app, "/models/benchmarking")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(body))

	code, body = get(t, app, "/models")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["icon_d2","icon_seamless"]`, string(body))
}

func TestTemperatureHistoryParameters(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		code    int
		message string
	}{
		{"missing stop", "start=2024-01-01%2000:00:00&frequency=daily", http.StatusBadRequest, "stop is a required parameter"},
		{"bad start", "start=2024-01-01T00:00:00&stop=2024-01-02%2000:00:00&frequency=daily", http.StatusBadRequest, "start must be in the format YYYY-MM-DD HH:MM:SS"},
		{"bad frequency", "start=2024-01-01%2000:00:00&stop=2024-01-02%2000:00:00&frequency=monthly", http.StatusBadRequest, "frequency must be one of: daily, hourly, 10-minutes"},
		{"ok", "start=2024-01-01%2000:00:00&stop=2024-01-02%2000:00:00&frequency=10-minutes", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			app := newTestApp(t, svc, Options{})

			code, body := get(t, app, "/actual/temperature-history?"+tt.query)
			require.Equal(t, tt.code, code, string(body))
			if tt.message != "" {
				assert.Equal(t, tt.message, errorOf(t, body))
				return
			}
			assert.Equal(t, weather.TenMinutes, svc.gotFreq)
			assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), svc.gotStart)
		})
	}
}

func TestFogCountHistoryRejectsSubDailyFrequency(t *testing.T) {
	app := newTestApp(t, &stubService{}, Options{})

	code, body := get(t, app, "/actual/fog-count-history?start=2024-01-01%2000:00:00&stop=2024-02-01%2000:00:00&frequency=hourly")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "frequency must be one of: monthly, yearly", errorOf(t, body))
}

func TestWaterLevelStationSelection(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(t, svc, Options{})

	code, body := get(t, app, "/actual/water-level?station_id=abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "station_id must be an integer", errorOf(t, body))

	svc.err = weather.ErrUnknownStation
	code, body = get(t, app, "/actual/water-level?station_id=3")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, weather.ErrUnknownStation.Error(), errorOf(t, body))
	assert.Equal(t, 3, svc.gotKey)
}

func TestWaterLevelSummary(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := &stubService{records: []weather.Record{
		waterRecord(t, at, "240.00"),
		waterRecord(t, at.Add(15*time.Minute), "250.00"),
	}}
	app := newTestApp(t, svc, Options{})

	code, body := get(t, app, "/actual/water-level/summary?station_id=2")
	require.Equal(t, http.StatusOK, code, string(body))

	var summary map[string]any
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, float64(2), summary["count"])
	assert.Equal(t, "245.00", summary["mean"])
	assert.Equal(t, 2, svc.gotKey)
}

func TestArchiveWaterLevelPeriod(t *testing.T) {
	tests := []struct {
		period string
		want   weather.Window
	}{
		{"", weather.WindowNone},
		{"m", weather.WindowMonthly},
		{"y", weather.WindowYearly},
	}
	for _, tt := range tests {
		svc := &stubService{}
		app := newTestApp(t, svc, Options{})

		code, body := get(t, app, "/archive/water-level?start=2023-01-01T00:00:00&stop=2024-01-01T00:00:00&station_id=1&period="+tt.period)
		require.Equal(t, http.StatusOK, code, string(body))
		assert.Equal(t, tt.want, svc.gotWindow)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), svc.gotStop)
	}

	app := newTestApp(t, &stubService{}, Options{})
	code, body := get(t, app, "/archive/water-level?start=2023-01-01T00:00:00&stop=2024-01-01T00:00:00&station_id=1&period=w")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "period must be one of: m, y", errorOf(t, body))
}

func TestForecastRoutes(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(t, svc, Options{})

	code, body := get(t, app, "/forecasts?datetime=2024-05-01%2012:00:00&model_id=icon_d2")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "datetime must be in the format YYYY-MM-DDTHH:MM:SSZ", errorOf(t, body))

	code, _ = get(t, app, "/forecasts?datetime=2024-05-01T12:00:00Z&model_id=icon_d2")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "icon_d2", svc.gotModel)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), svc.gotStart)

	code, body = get(t, app, "/current-forecast")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "model_id is a required parameter", errorOf(t, body))

	svc.err = weather.ErrNoData
	code, _ = get(t, app, "/current-forecast?model_id=icon_d2")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestArchiveRoute(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(t, svc, Options{})

	code, body := get(t, app, "/actual/archive?date=2024-05-01%2000:00:00")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "model_id is a required parameter", errorOf(t, body))

	code, _ = get(t, app, "/actual/archive?date=2024-05-01%2000:00:00&model_id=icon_seamless")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "icon_seamless", svc.gotModel)
}

func TestPostWeatherstation(t *testing.T) {
	payload := `{"timestamp":"2024-06-01T08:30:00Z","temperature":18.5,"water_temperature":16,"humidity":70}`
	post := func(auth, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/weatherstation", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		return req
	}

	svc := &stubService{}
	app := newTestApp(t, svc, Options{APIKey: "secret"})

	code, body := do(t, app, post("", payload))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Unauthorized: Invalid API key.", errorOf(t, body))

	code, _ = do(t, app, post("Bearer wrong", payload))
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = do(t, app, post("Bearer secret", `{"timestamp":"2024-06-01T08:30:00Z"}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errorOf(t, body), "Data must contain the following fields")

	code, body = do(t, app, post("Bearer secret", payload))
	require.Equal(t, http.StatusOK, code, string(body))
	assert.JSONEq(t, `{"message":"Data received successfully"}`, string(body))
	require.Len(t, svc.saved, 1)
	assert.Equal(t, 18.5, svc.saved[0].Temperature)
}

func TestGetWeatherstation(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(t, svc, Options{})

	code, body := get(t, app, "/weatherstation?start=2024-06-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "stop is a required parameter", errorOf(t, body))

	code, _ = get(t, app, "/weatherstation?start=2024-06-01T00:00:00Z&stop=2024-06-02T00:00:00Z")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), svc.gotStop)
}

func TestLiveHistory(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(t, svc, Options{})

	code, _ := get(t, app, "/actual/live-data/history?from=1714564800&to=2024-05-01T13:00:00Z")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), svc.gotStart)

	svc.err = store.ErrNotFound
	code, _ = get(t, app, "/actual/live-data/history?from=1714564800&to=1714568400")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := get(t, app, "/actual/live-data/history?from=yesterday&to=1714568400")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "from must be RFC3339 or unix seconds", errorOf(t, body))
}

func TestUnexpectedErrorsAre500(t *testing.T) {
	app := newTestApp(t, &stubService{err: errors.New("influx: connection reset")}, Options{})

	code, body := get(t, app, "/models/benchmarking")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "influx: connection reset", errorOf(t, body))
}

func TestSerializationFailuresAreCounted(t *testing.T) {
	m := metrics.New()
	bad := weather.NewRow(weather.BenchmarkLayout, map[string]any{})
	app := newTestApp(t, &stubService{rows: []weather.Row{bad}}, Options{Metrics: m})

	code, _ := get(t, app, "/models/benchmarking")
	assert.Equal(t, http.StatusInternalServerError, code)

	code, body := get(t, app, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `fogcast_serialization_failures_total{route="/models/benchmarking"} 1`)
}

func TestStations(t *testing.T) {
	app := newTestApp(t, &stubService{}, Options{})

	code, body := get(t, app, "/stations")
	require.Equal(t, http.StatusOK, code)

	var stations []map[string]any
	require.NoError(t, json.Unmarshal(body, &stations))
	require.Len(t, stations, 2)
	assert.Equal(t, "KONSTANZ", stations[0]["name"])
	assert.Equal(t, "aa9179c1-17ef-4c61-a48a-74193fa7bfdf", stations[0]["id"])
}
