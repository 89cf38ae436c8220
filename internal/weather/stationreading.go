package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StationTimestampLayout is the wire format of station reading timestamps.
const StationTimestampLayout = "2006-01-02T15:04:05Z"

var stationReadingKeys = []string{"timestamp", "temperature", "water_temperature", "humidity"}

// ParseStationReading decodes and validates a station payload as posted over
// HTTP or published over MQTT.
func ParseStationReading(payload []byte) (StationReading, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return StationReading{}, invalidf("No data provided")
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return StationReading{}, invalidf("Data must be a dictionary")
	}

	for _, key := range stationReadingKeys {
		if _, ok := raw[key]; !ok {
			return StationReading{}, invalidf("Data must contain the following fields: %s", strings.Join(stationReadingKeys, ", "))
		}
	}

	ts, ok := raw["timestamp"].(string)
	if !ok {
		return StationReading{}, invalidf("Timestamp must be a string in the format YYYY-MM-DDTHH:MM:SSZ")
	}
	at, err := time.Parse(StationTimestampLayout, ts)
	if err != nil {
		return StationReading{}, invalidf("Timestamp must be in the format YYYY-MM-DDTHH:MM:SSZ")
	}

	reading := StationReading{Timestamp: at.UTC()}
	targets := []struct {
		key   string
		label string
		dst   *float64
	}{
		{"temperature", "Temperature", &reading.Temperature},
		{"water_temperature", "Water temperature", &reading.WaterTemperature},
		{"humidity", "Humidity", &reading.Humidity},
	}
	for _, t := range targets {
		n, ok := raw[t.key].(json.Number)
		if !ok {
			return StationReading{}, invalidf("%s must be an integer or float", t.label)
		}
		f, err := n.Float64()
		if err != nil {
			return StationReading{}, invalidf("%s must be an integer or float", t.label)
		}
		*t.dst = f
	}
	return reading, nil
}

// String is used in log lines.
func (r StationReading) String() string {
	return fmt.Sprintf("%s t=%.2f water=%.2f rh=%.2f", r.Timestamp.Format(StationTimestampLayout), r.Temperature, r.WaterTemperature, r.Humidity)
}
