package providers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/fogcast-backend/internal/common"
	"github.com/i474232898/fogcast-backend/internal/weather"
)

const (
	dwdBaseURL = "https://opendata.dwd.de/climate_environment/CDC/observations_germany/climate"

	// DefaultDWDStation is Konstanz.
	DefaultDWDStation = 2712

	dwdMissing = -999
)

var (
	errNoArchive = errors.New("no archive for station")
	errNoProduct = errors.New("archive has no produkt file")

	archiveLink = regexp.MustCompile(`href="([^"]+\.zip)"`)
	archiveSpan = regexp.MustCompile(`_(\d{8})_(\d{8})_hist\.zip$`)
)

// DWD implements weather.Observations on top of the open data portal of the
// German weather service.
type DWD struct {
	upstream
	baseURL string
	station string
}

// NewDWD creates the adapter for stationID. An empty baseURL selects the
// public portal.
func NewDWD(cfg HTTPClientConfig, baseURL string, stationID int) *DWD {
	if baseURL == "" {
		baseURL = dwdBaseURL
	}
	if stationID <= 0 {
		stationID = DefaultDWDStation
	}
	return &DWD{
		upstream: newUpstream("dwd", cfg),
		baseURL:  strings.TrimRight(baseURL, "/"),
		station:  fmt.Sprintf("%05d", stationID),
	}
}

// dwdColumn maps a product column to a record name.
type dwdColumn struct {
	name    string
	column  string
	quality string
	unit    string
}

type dwdLiveProduct struct {
	dataset string
	columns []dwdColumn
}

var liveProducts = []dwdLiveProduct{
	{dataset: "wind", columns: []dwdColumn{
		{name: "wind_direction", column: "DD_10", quality: "QN", unit: "°"},
		{name: "wind_speed", column: "FF_10", quality: "QN", unit: "m/s"},
	}},
	{dataset: "precipitation", columns: []dwdColumn{
		{name: "precipitation_indicator", column: "RWS_IND_10", quality: "QN"},
	}},
	{dataset: "air_temperature", columns: []dwdColumn{
		{name: "humidity", column: "RF_10", quality: "QN", unit: "%"},
		{name: "air_pressure", column: "PP_10", quality: "QN", unit: "hPa"},
		{name: "temperature", column: "TT_10", quality: "QN", unit: "°C"},
	}},
}

// LiveData returns the newest 10-minute value of wind, precipitation and
// air measurements.
func (d *DWD) LiveData(ctx context.Context) ([]weather.Record, error) {
	var out []weather.Record
	for _, p := range liveProducts {
		rows, err := d.product(ctx, "10_minutes", p.dataset, "now", time.Time{}, time.Time{})
		if err != nil {
			return nil, err
		}
		for _, col := range p.columns {
			rec, ok, err := latest(rows, col)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("dwd: no current value for %s", col.name)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

type dwdHistory struct {
	resolution string
	dataset    string
	timeColumn string
	column     dwdColumn
}

var temperatureProducts = map[weather.Frequency]dwdHistory{
	weather.Daily: {
		resolution: "daily", dataset: "kl", timeColumn: "MESS_DATUM",
		column: dwdColumn{name: "temperature_air", column: "TMK", quality: "QN_4", unit: "°C"},
	},
	weather.Hourly: {
		resolution: "hourly", dataset: "air_temperature", timeColumn: "MESS_DATUM",
		column: dwdColumn{name: "temperature_air", column: "TT_TU", quality: "QN_9", unit: "°C"},
	},
	weather.TenMinutes: {
		resolution: "10_minutes", dataset: "air_temperature", timeColumn: "MESS_DATUM",
		column: dwdColumn{name: "temperature_air", column: "TT_10", quality: "QN", unit: "°C"},
	},
}

var fogProducts = map[weather.Frequency]dwdHistory{
	weather.Monthly: {
		resolution: "monthly", dataset: "weather_phenomena", timeColumn: "MESS_DATUM_BEGINN",
		column: dwdColumn{name: "days_with_fog", column: "MO_NEBEL", quality: "QN_4", unit: "d"},
	},
	weather.Yearly: {
		resolution: "annual", dataset: "weather_phenomena", timeColumn: "MESS_DATUM_BEGINN",
		column: dwdColumn{name: "days_with_fog", column: "JA_NEBEL", quality: "QN_4", unit: "d"},
	},
}

// Temperature returns mean air temperature between start and end.
func (d *DWD) Temperature(ctx context.Context, start, end time.Time, freq weather.Frequency) ([]weather.Record, error) {
	h, ok := temperatureProducts[freq]
	if !ok {
		return nil, fmt.Errorf("%w: temperature at %q", weather.ErrUnsupportedFrequency, freq)
	}
	return d.history(ctx, h, start, end)
}

// FogCount returns the number of days with fog per month or year.
func (d *DWD) FogCount(ctx context.Context, start, end time.Time, freq weather.Frequency) ([]weather.Record, error) {
	h, ok := fogProducts[freq]
	if !ok {
		return nil, fmt.Errorf("%w: fog count at %q", weather.ErrUnsupportedFrequency, freq)
	}
	return d.history(ctx, h, start, end)
}

// history merges the recent and historical periods; recent values win on
// duplicate timestamps.
func (d *DWD) history(ctx context.Context, h dwdHistory, start, end time.Time) ([]weather.Record, error) {
	start, end = start.UTC(), end.UTC()
	byTime := make(map[time.Time]weather.Record)

	for _, period := range []string{"historical", "recent"} {
		rows, err := d.product(ctx, h.resolution, h.dataset, period, start, end)
		if errors.Is(err, errNoArchive) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			rec, ok, err := row.record(h.timeColumn, h.column)
			if err != nil {
				return nil, err
			}
			if !ok || rec.Date().Before(start) || rec.Date().After(end) {
				continue
			}
			byTime[rec.Date()] = rec
		}
	}

	out := make([]weather.Record, 0, len(byTime))
	for _, rec := range byTime {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date().Before(out[j].Date()) })
	return out, nil
}

// product downloads every station archive of one directory and returns the
// parsed rows. Historical archives outside [start, end] are skipped when the
// bounds are set.
func (d *DWD) product(ctx context.Context, resolution, dataset, period string, start, end time.Time) ([]dwdRow, error) {
	dir := fmt.Sprintf("%s/%s/%s/%s/", d.baseURL, resolution, dataset, period)
	listing, err := d.get(ctx, dir)
	if err != nil {
		return nil, err
	}

	names := matchArchives(listing, d.station, start, end)
	if len(names) == 0 {
		return nil, fmt.Errorf("dwd: %s/%s/%s: %w %s", resolution, dataset, period, errNoArchive, d.station)
	}

	var rows []dwdRow
	for _, name := range names {
		archive, err := d.get(ctx, dir+name)
		if err != nil {
			return nil, err
		}
		parsed, err := parseProduct(archive)
		if err != nil {
			return nil, fmt.Errorf("dwd: %s: %w", name, err)
		}
		rows = append(rows, parsed...)
	}
	return rows, nil
}

func matchArchives(listing []byte, station string, start, end time.Time) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range archiveLink.FindAllSubmatch(listing, -1) {
		name := string(m[1])
		if seen[name] || !common.HasAny(name, "_"+station+"_", "_"+station+".") {
			continue
		}
		if !start.IsZero() && !end.IsZero() && !archiveOverlaps(name, start, end) {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func archiveOverlaps(name string, start, end time.Time) bool {
	m := archiveSpan.FindStringSubmatch(name)
	if m == nil {
		return true
	}
	from, err1 := time.Parse("20060102", m[1])
	to, err2 := time.Parse("20060102", m[2])
	if err1 != nil || err2 != nil {
		return true
	}
	return !to.AddDate(0, 0, 1).Before(start) && !from.After(end)
}

// dwdRow is one line of a produkt file keyed by trimmed header names.
type dwdRow map[string]string

func parseProduct(archive []byte) ([]dwdRow, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "produkt_") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return parseRows(rc)
	}
	return nil, errNoProduct
}

func parseRows(r io.Reader) ([]dwdRow, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []dwdRow
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(dwdRow, len(header))
		for i, v := range fields {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// value returns the numeric text of col, or false when it is absent or
// flagged as missing.
func (r dwdRow) value(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == "" {
		return "", false
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == dwdMissing {
		return "", false
	}
	return v, true
}

func (r dwdRow) at(col string) (time.Time, error) {
	return common.ParseUTC(r[col], "200601021504", "2006010215", "20060102")
}

func (r dwdRow) record(timeColumn string, c dwdColumn) (weather.Record, bool, error) {
	v, ok := r.value(c.column)
	if !ok {
		return weather.Record{}, false, nil
	}
	q, ok := r.value(c.quality)
	if !ok {
		q = strconv.Itoa(dwdMissing)
	}
	ts, err := r.at(timeColumn)
	if err != nil {
		return weather.Record{}, false, fmt.Errorf("dwd: %s %q: %w", timeColumn, r[timeColumn], err)
	}
	if c.column == "RWS_IND_10" {
		v = precipitationIndicator(v)
	}
	rec, err := weather.NewRecord(c.name, ts, v, q, weather.WithUnit(c.unit))
	if err != nil {
		return weather.Record{}, false, fmt.Errorf("dwd: %w", err)
	}
	return rec, true, nil
}

// precipitationIndicator maps the DWD indicator to 0.0 (dry) or 1.0.
func precipitationIndicator(v string) string {
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == 0 {
		return "0.0"
	}
	return "1.0"
}

func latest(rows []dwdRow, c dwdColumn) (weather.Record, bool, error) {
	var (
		best  weather.Record
		found bool
	)
	for _, row := range rows {
		rec, ok, err := row.record("MESS_DATUM", c)
		if err != nil {
			return weather.Record{}, false, err
		}
		if ok && (!found || rec.Date().After(best.Date())) {
			best, found = rec, true
		}
	}
	return best, found, nil
}
