// Package migrate imports historical gauge exports into the time-series
// database.
package migrate

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/i474232898/fogcast-backend/internal/common"
	"github.com/i474232898/fogcast-backend/internal/weather"
)

const (
	colNumber = "Messstellennummer"
	colName   = "Stationsname"
	colTime   = "Datum / Uhrzeit"
	colValue  = "Wert"
	colUnit   = "Einheit"

	exportLayout     = "2006-01-02 15:04"
	DefaultBatchSize = 5000
)

var (
	ErrMissingColumn = errors.New("csv export is missing a column")
	ErrShortRow      = errors.New("csv row has fewer fields than the header needs")
)

// Writer stores a batch of gauge records.
type Writer interface {
	WriteWaterLevels(ctx context.Context, station weather.Station, records []weather.Record) error
}

// Result counts what happened to the rows of one export.
type Result struct {
	Rows    int
	Written int
	Skipped int
}

// WaterLevels reads a PegelOnline CSV export. Times in the export are
// Europe/Berlin wall clock; they are written in UTC.
type WaterLevels struct {
	w         Writer
	batchSize int
	loc       *time.Location
	logger    *slog.Logger
}

func NewWaterLevels(w Writer, batchSize int, logger *slog.Logger) (*WaterLevels, error) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return nil, fmt.Errorf("load export time zone: %w", err)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WaterLevels{w: w, batchSize: batchSize, loc: loc, logger: logger}, nil
}

type pending struct {
	station weather.Station
	records []weather.Record
}

// Import reads r to the end and writes its measurements in batches.
func (m *WaterLevels) Import(ctx context.Context, r io.Reader) (Result, error) {
	var res Result

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}
	idx, width, err := columns(header)
	if err != nil {
		return res, err
	}

	// One batch per station so every write carries a single set of tags.
	batches := map[int]*pending{}
	flush := func(b *pending) error {
		if len(b.records) == 0 {
			return nil
		}
		if err := m.w.WriteWaterLevels(ctx, b.station, b.records); err != nil {
			return fmt.Errorf("write batch for %s: %w", b.station.Name, err)
		}
		res.Written += len(b.records)
		m.logger.Info("batch written", "station", b.station.Name, "written", res.Written, "rows", res.Rows)
		b.records = b.records[:0]
		return nil
	}

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Rows++
		if len(rec) < width {
			return res, fmt.Errorf("line %d: %w: got %d, want %d", line, ErrShortRow, len(rec), width)
		}

		station, err := stationOf(rec[idx[colNumber]], rec[idx[colName]])
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		at, err := common.ParseIn(rec[idx[colTime]], exportLayout, m.loc)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		value, err := weather.ToDecimal(rec[idx[colValue]])
		if err != nil {
			res.Skipped++
			continue
		}
		record, err := weather.NewRecord(weather.NameWaterLevel, at, value, weather.GaugeQuality,
			weather.WithUnit(strings.TrimSpace(rec[idx[colUnit]])))
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}

		b, ok := batches[station.Number]
		if !ok {
			b = &pending{station: station, records: make([]weather.Record, 0, m.batchSize)}
			batches[station.Number] = b
		}
		b.records = append(b.records, record)
		if len(b.records) == m.batchSize {
			if err := flush(b); err != nil {
				return res, err
			}
		}
	}

	for _, b := range batches {
		if err := flush(b); err != nil {
			return res, err
		}
	}
	return res, nil
}

// columns maps the required column names to their positions. width is the
// number of fields a row needs to reach all of them.
func columns(header []string) (idx map[string]int, width int, err error) {
	idx = make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range []string{colNumber, colName, colTime, colValue, colUnit} {
		i, ok := idx[name]
		if !ok {
			return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		width = max(width, i+1)
	}
	return idx, width, nil
}

// stationOf prefers the catalogue entry so tags match what the scheduler writes.
func stationOf(number, name string) (weather.Station, error) {
	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil {
		return weather.Station{}, fmt.Errorf("station number %q: %w", number, err)
	}
	if s, ok := weather.StationByNumber(n); ok {
		return s, nil
	}
	return weather.Station{Number: n, Name: strings.TrimSpace(name)}, nil
}
