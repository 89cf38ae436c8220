package common

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasAny(t *testing.T) {
	assert.True(t, HasAny("tageswerte_KL_02712_akt.zip", "_02712_", "_09999_"))
	assert.False(t, HasAny("tageswerte_KL_00044_akt.zip", "_02712_"))
	assert.False(t, HasAny("anything"))
}

func TestParseUTC(t *testing.T) {
	got, err := ParseUTC(" 2024-05-01 12:30:00 ", "2006-01-02T15:04:05", "2006-01-02 15:04:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC), got)

	got, err = ParseUTC("2024-05-01T12:30:00+02:00", time.RFC3339)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), got)

	_, err = ParseUTC("01.05.2024", "2006-01-02")
	assert.ErrorIs(t, err, ErrNoLayout)
}

func TestParseIn(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	summer, err := ParseIn("2023-07-01 12:00", "2006-01-02 15:04", berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 7, 1, 10, 0, 0, 0, time.UTC), summer)

	winter, err := ParseIn("2023-01-01 12:00", "2006-01-02 15:04", berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 1, 11, 0, 0, 0, time.UTC), winter)
}
