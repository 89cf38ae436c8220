package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

type batchWriter struct {
	batches [][]weather.Record
	station []weather.Station
	err     error
}

func (b *batchWriter) WriteWaterLevels(ctx context.Context, station weather.Station, records []weather.Record) error {
	if b.err != nil {
		return b.err
	}
	b.station = append(b.station, station)
	b.batches = append(b.batches, append([]weather.Record(nil), records...))
	return nil
}

const export = `Gewässer,Messstellennummer,Stationsname,Parameter,Datum / Uhrzeit,Wert,Einheit,Produkt,Zeitbezug
BODENSEE,906,KONSTANZ,W,2024-01-15 10:00,312,cm,Rohdaten,MEZ
BODENSEE,906,KONSTANZ,W,2024-07-15 10:00,401,cm,Rohdaten,MEZ
BODENSEE,906,KONSTANZ,W,2024-07-15 10:15,---,cm,Rohdaten,MEZ
BODENSEE,906,KONSTANZ,W,2024-07-15 10:30,401.5,cm,Rohdaten,MEZ
`

func TestImportConvertsBerlinTimeToUTC(t *testing.T) {
	w := &batchWriter{}
	m, err := NewWaterLevels(w, 0, nil)
	require.NoError(t, err)

	res, err := m.Import(context.Background(), strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, Result{Rows: 4, Written: 3, Skipped: 1}, res)

	require.Len(t, w.batches, 1)
	assert.Equal(t, weather.KonstanzBodensee, w.station[0])
	recs := w.batches[0]
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), recs[0].Date(), "winter is UTC+1")
	assert.Equal(t, time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC), recs[1].Date(), "summer is UTC+2")
	assert.Equal(t, "401.5", recs[2].Value().String())
	assert.Equal(t, "cm", recs[2].Unit())
}

func TestImportWritesInBatches(t *testing.T) {
	w := &batchWriter{}
	m, err := NewWaterLevels(w, 2, nil)
	require.NoError(t, err)

	_, err = m.Import(context.Background(), strings.NewReader(export))
	require.NoError(t, err)

	require.Len(t, w.batches, 2)
	assert.Len(t, w.batches[0], 2)
	assert.Len(t, w.batches[1], 1)
}

func TestImportUnknownStationKeepsExportName(t *testing.T) {
	w := &batchWriter{}
	m, err := NewWaterLevels(w, 0, nil)
	require.NoError(t, err)

	csv := "Messstellennummer,Stationsname,Datum / Uhrzeit,Wert,Einheit\n1234,RADOLFZELL,2024-03-01 00:00,300,cm\n"
	_, err = m.Import(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, w.station, 1)
	assert.Equal(t, weather.Station{Number: 1234, Name: "RADOLFZELL"}, w.station[0])
}

func TestImportErrors(t *testing.T) {
	m, err := NewWaterLevels(&batchWriter{}, 0, nil)
	require.NoError(t, err)

	_, err = m.Import(context.Background(), strings.NewReader("Messstellennummer,Wert\n906,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	bad := "Messstellennummer,Stationsname,Datum / Uhrzeit,Wert,Einheit\n906,KONSTANZ,15.01.2024 10:00,300,cm\n"
	_, err = m.Import(context.Background(), strings.NewReader(bad))
	assert.ErrorContains(t, err, "line 2")

	failing, err := NewWaterLevels(&batchWriter{err: errors.New("influx down")}, 0, nil)
	require.NoError(t, err)
	_, err = failing.Import(context.Background(), strings.NewReader(export))
	assert.ErrorContains(t, err, "influx down")
}

func TestImportRejectsShortRow(t *testing.T) {
	w := &batchWriter{}
	m, err := NewWaterLevels(w, 0, nil)
	require.NoError(t, err)

	short := "Messstellennummer,Stationsname,Datum / Uhrzeit,Wert,Einheit\n" +
		"906,KONSTANZ,2024-01-01 00:00,351,cm\n" +
		"906,KONSTANZ,2024-01-01 00:15,351\n"

	var res Result
	require.NotPanics(t, func() {
		res, err = m.Import(context.Background(), strings.NewReader(short))
	})
	assert.ErrorIs(t, err, ErrShortRow)
	assert.ErrorContains(t, err, "line 3")
	assert.Equal(t, 2, res.Rows)
	assert.Empty(t, w.batches)
}
