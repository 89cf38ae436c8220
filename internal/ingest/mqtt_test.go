package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

type recordingSaver struct {
	readings []weather.StationReading
	err      error
}

func (r *recordingSaver) SaveStationReading(ctx context.Context, reading weather.StationReading) error {
	if r.err != nil {
		return r.err
	}
	r.readings = append(r.readings, reading)
	return nil
}

func newTestSubscriber(saver Saver) *Subscriber {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSubscriber(Config{Broker: "tcp://127.0.0.1:1", Topic: "fogcast/station", ClientID: "test"}, saver, nil, logger)
}

func TestHandleMessageStoresValidReadings(t *testing.T) {
	saver := &recordingSaver{}
	s := newTestSubscriber(saver)

	s.handleMessage("fogcast/station", []byte(`{"timestamp":"2024-06-01T08:30:00Z","temperature":18.5,"water_temperature":16,"humidity":70}`))

	require.Len(t, saver.readings, 1)
	assert.Equal(t, time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC), saver.readings[0].Timestamp)
	assert.Equal(t, 16.0, saver.readings[0].WaterTemperature)
}

func TestHandleMessageDropsInvalidPayloads(t *testing.T) {
	saver := &recordingSaver{}
	s := newTestSubscriber(saver)

	s.handleMessage("fogcast/station", []byte(`not json`))
	s.handleMessage("fogcast/station", []byte(`{"timestamp":"2024-06-01T08:30:00Z"}`))

	assert.Empty(t, saver.readings)
}

func TestHandleMessageSurvivesSaveErrors(t *testing.T) {
	s := newTestSubscriber(&recordingSaver{err: errors.New("influx down")})
	assert.NotPanics(t, func() {
		s.handleMessage("fogcast/station", []byte(`{"timestamp":"2024-06-01T08:30:00Z","temperature":1,"water_temperature":1,"humidity":1}`))
	})
}

func TestConnectAfterDisconnectFails(t *testing.T) {
	s := newTestSubscriber(&recordingSaver{})
	s.Disconnect()
	s.Disconnect()

	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, errStopped)
	assert.False(t, s.IsConnected())
}
