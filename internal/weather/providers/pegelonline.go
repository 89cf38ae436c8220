package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/i474232898/fogcast-backend/internal/weather"
)

const pegelOnlineBaseURL = "https://www.pegelonline.wsv.de/webservices/rest-api/v2"

// PegelOnline implements weather.Gauges for the federal waterways gauge service.
type PegelOnline struct {
	upstream
	baseURL string
}

// NewPegelOnline creates the adapter. An empty baseURL selects the public API.
func NewPegelOnline(cfg HTTPClientConfig, baseURL string) *PegelOnline {
	if baseURL == "" {
		baseURL = pegelOnlineBaseURL
	}
	return &PegelOnline{upstream: newUpstream("pegelonline", cfg), baseURL: baseURL}
}

type pegelMeasurement struct {
	Timestamp string      `json:"timestamp"`
	Value     json.Number `json:"value"`
}

// WaterLevel fetches the W (water level) series of station for period.
func (p *PegelOnline) WaterLevel(ctx context.Context, station weather.Station, period weather.Period) ([]weather.Record, error) {
	u := fmt.Sprintf("%s/stations/%s/W/measurements.json?%s",
		p.baseURL, url.PathEscape(station.ID.String()), url.Values{"start": {string(period)}}.Encode())

	var payload []pegelMeasurement
	if err := p.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}

	records := make([]weather.Record, 0, len(payload))
	for _, m := range payload {
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("pegelonline: timestamp %q: %w", m.Timestamp, err)
		}
		rec, err := weather.NewRecord(weather.NameWaterLevel, ts, m.Value, weather.GaugeQuality, weather.WithUnit(weather.UnitCentimeter))
		if err != nil {
			return nil, fmt.Errorf("pegelonline: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
