package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/fogcast-backend/internal/serialize"
)

func gaugeRecord(t *testing.T, at time.Time, value string) Record {
	t.Helper()
	r, err := NewRecord(NameWaterLevel, at, value, GaugeQuality, WithUnit(UnitCentimeter))
	require.NoError(t, err)
	return r
}

func TestSummarizeWaterLevels(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	records := []Record{
		gaugeRecord(t, base, "300"),
		gaugeRecord(t, base.Add(2*time.Hour), "310"),
		gaugeRecord(t, base.Add(time.Hour), "305"),
	}

	s := SummarizeWaterLevels(KonstanzRhein, records)
	require.NotNil(t, s.Latest)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, "310", s.Latest.Value().String())
	assert.Equal(t, "300", s.Min.String())
	assert.Equal(t, "310", s.Max.String())
	assert.Equal(t, "305.00", serialize.DecimalString(*s.Mean))
	assert.True(t, s.Measurements[0].Date().After(s.Measurements[1].Date()))

	out, err := serialize.Serialize(s)
	require.NoError(t, err)
	assert.Equal(t, "305.00", out["mean"])
	assert.Equal(t, int64(3), out["count"])
	station := out["station"].(serialize.Map)
	assert.Equal(t, "e020e651-e422-46d3-ae28-34887c5a4a8e", station["id"])
	assert.Equal(t, int64(3329), station["number"])
	assert.Len(t, out["measurements"], 3)
}

func TestSummarizeWaterLevelsEmpty(t *testing.T) {
	s := SummarizeWaterLevels(KonstanzBodensee, nil)
	out, err := serialize.Serialize(s)
	require.NoError(t, err)
	assert.Nil(t, out["latest"])
	assert.Nil(t, out["min"])
	assert.Nil(t, out["mean"])
	assert.Equal(t, int64(0), out["count"])
}

func TestLatestByName(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mk := func(name string, at time.Time) Record {
		r, err := NewRecord(name, at, 1, 1)
		require.NoError(t, err)
		return r
	}
	got := LatestByName([]Record{
		mk("wind_speed", base),
		mk("humidity", base),
		mk("wind_speed", base.Add(10*time.Minute)),
	})
	require.Len(t, got, 2)
	assert.Equal(t, "wind_speed", got[0].Name())
	assert.Equal(t, base.Add(10*time.Minute), got[0].Date())
	assert.Equal(t, "humidity", got[1].Name())
}

func TestStationByKey(t *testing.T) {
	s, err := StationByKey(1)
	require.NoError(t, err)
	assert.Equal(t, 906, s.Number)

	_, err = StationByKey(3)
	assert.ErrorIs(t, err, ErrUnknownStation)

	s, ok := StationByNumber(3329)
	assert.True(t, ok)
	assert.Equal(t, 2, s.Key)
}
