package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

var storeNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func snap(at time.Time) weather.Snapshot {
	return weather.Snapshot{FetchedAt: at}
}

func TestMemoryStoreLatestAndRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	for i := 0; i < 3; i++ {
		s.SaveSnapshot("live", snap(storeNow.Add(time.Duration(i)*time.Minute)))
	}

	latest, err := s.GetLatest("live")
	require.NoError(t, err)
	assert.Equal(t, storeNow.Add(2*time.Minute), latest.FetchedAt)

	got, err := s.GetRange("live", storeNow.Add(time.Minute), storeNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = s.GetRange("live", storeNow.Add(time.Hour), storeNow.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetLatest("other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	for i := 0; i < 5; i++ {
		s.SaveSnapshot("live", snap(storeNow.Add(time.Duration(i)*time.Minute)))
	}

	got, err := s.GetRange("live", storeNow, storeNow.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, storeNow.Add(3*time.Minute), got[0].FetchedAt)
}

func TestMemoryStoreRetentionByAge(t *testing.T) {
	s := NewMemoryStore(0, time.Hour)
	s.now = func() time.Time { return storeNow }

	s.SaveSnapshot("live", snap(storeNow.Add(-3*time.Hour)))
	s.SaveSnapshot("live", snap(storeNow.Add(-2*time.Hour)))
	got, err := s.GetRange("live", storeNow.Add(-24*time.Hour), storeNow)
	require.NoError(t, err)
	assert.Len(t, got, 1, "the newest snapshot survives even when stale")

	s.SaveSnapshot("live", snap(storeNow.Add(-10*time.Minute)))
	got, err = s.GetRange("live", storeNow.Add(-24*time.Hour), storeNow)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, storeNow.Add(-10*time.Minute), got[0].FetchedAt)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(10, 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SaveSnapshot("live", snap(storeNow.Add(time.Duration(i)*time.Second)))
			_, _ = s.GetLatest("live")
		}(i)
	}
	wg.Wait()

	got, err := s.GetRange("live", storeNow, storeNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 10)
}
