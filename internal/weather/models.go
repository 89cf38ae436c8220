package weather

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/i474232898/fogcast-backend/internal/serialize"
)

var (
	ErrUnknownStation       = errors.New("station_id must be either 1 (Konstanz Bodensee) or 2 (Konstanz Rhein)")
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
	ErrNoData               = errors.New("no data for requested range")
)

// ValidationError marks a request that can never succeed as given.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Frequency selects the temporal resolution of a history request.
type Frequency string

const (
	TenMinutes Frequency = "10-minutes"
	Hourly     Frequency = "hourly"
	Daily      Frequency = "daily"
	Monthly    Frequency = "monthly"
	Yearly     Frequency = "yearly"
)

// Period is an ISO-8601 duration understood by the gauge service.
type Period string

const (
	Last24Hours Period = "P1D"
	Last31Days  Period = "P31D"
)

// Window selects the aggregation of archived water levels.
type Window string

const (
	WindowNone    Window = ""
	WindowMonthly Window = "1mo"
	WindowYearly  Window = "1y"
)

// GaugeQuality is the fixed quality reported for gauge measurements.
var GaugeQuality = decimal.RequireFromString("2.0")

const (
	NameWaterLevel = "water_level"
	UnitCentimeter = "cm"
)

// Station is one of the water-level gauges exposed by the API.
type Station struct {
	Key    int       // public selector used in query parameters
	ID     uuid.UUID // gauge service identifier
	Number int       // gauge number, used as time-series tag
	Name   string
}

var (
	KonstanzBodensee = Station{
		Key:    1,
		ID:     uuid.MustParse("aa9179c1-17ef-4c61-a48a-74193fa7bfdf"),
		Number: 906,
		Name:   "KONSTANZ",
	}
	KonstanzRhein = Station{
		Key:    2,
		ID:     uuid.MustParse("e020e651-e422-46d3-ae28-34887c5a4a8e"),
		Number: 3329,
		Name:   "KONSTANZ-RHEIN",
	}
)

// Stations lists the catalogue in key order.
func Stations() []Station {
	return []Station{KonstanzBodensee, KonstanzRhein}
}

// StationByKey resolves the public 1/2 selector.
func StationByKey(key int) (Station, error) {
	for _, s := range Stations() {
		if s.Key == key {
			return s, nil
		}
	}
	return Station{}, ErrUnknownStation
}

// StationByNumber resolves a gauge number as found in CSV exports.
func StationByNumber(number int) (Station, bool) {
	for _, s := range Stations() {
		if s.Number == number {
			return s, true
		}
	}
	return Station{}, false
}

var stationFields = []serialize.Field{
	serialize.F("key", serialize.Integer),
	serialize.F("id", serialize.Identifier),
	serialize.F("number", serialize.Integer),
	serialize.F("name", serialize.Plain),
}

func (s Station) Fields() []serialize.Field {
	return stationFields
}

func (s Station) FieldValue(name string) (any, bool) {
	switch name {
	case "key":
		return s.Key, true
	case "id":
		return s.ID, true
	case "number":
		return s.Number, true
	case "name":
		return s.Name, true
	}
	return nil, false
}

// Snapshot is one cached fetch of the live measurements.
type Snapshot struct {
	FetchedAt    time.Time
	Measurements []Record
}

var snapshotFields = []serialize.Field{
	serialize.F("fetched_at", serialize.Timestamp),
	serialize.SequenceOf("measurements", serialize.Nested),
}

func (s Snapshot) Fields() []serialize.Field {
	return snapshotFields
}

func (s Snapshot) FieldValue(name string) (any, bool) {
	switch name {
	case "fetched_at":
		return s.FetchedAt, true
	case "measurements":
		return serialize.List(s.Measurements), true
	}
	return nil, false
}

// StationReading is one sample posted by the project's own weather station.
type StationReading struct {
	Timestamp        time.Time
	Temperature      float64
	WaterTemperature float64
	Humidity         float64
}
