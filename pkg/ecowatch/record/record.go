// Package record holds the validated sensor reading type and the rules that
// turn a raw, untyped reading from a source into one.
package record

import (
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
)

// Field names of a raw reading
const (
	FieldTimestamp   = "timestamp"
	FieldSensorType  = "sensor_type"
	FieldRoom        = "room"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldCO2Level    = "co2_level"
)

// Record is one validated environmental sensor reading.
// Records are values; a copy never observes changes made to another.
type Record struct {
	Timestamp   time.Time
	SensorType  string
	Room        string
	Temperature float64
	Humidity    float64
	CO2Level    float64
}

func (r Record) String() string {
	return fmt.Sprintf("Record(timestamp=%s, sensor_type=%q, room=%q, temperature=%g, humidity=%g, co2_level=%g)",
		r.Timestamp.Format(time.RFC3339), r.SensorType, r.Room, r.Temperature, r.Humidity, r.CO2Level)
}

// FromRaw builds a Record from a raw reading. The reading is validated first,
// so the error is either a *ValidationError or a *TimestampError.
func FromRaw(raw RawReading) (Record, error) {
	if err := Validate(raw); err != nil {
		return Record{}, err
	}

	tsValue, _ := raw.Field(FieldTimestamp)
	ts, _ := tsValue.Str()
	parsed, err := ParseTimestamp(ts)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Timestamp:   parsed,
		SensorType:  str(raw, FieldSensorType),
		Room:        str(raw, FieldRoom),
		Temperature: num(raw, FieldTemperature),
		Humidity:    num(raw, FieldHumidity),
		CO2Level:    num(raw, FieldCO2Level),
	}, nil
}

// ParseTimestamp parses an ISO-8601 timestamp. 'Z' and numeric offsets are
// accepted; a timestamp without an offset is taken as UTC. The result carries
// a fixed-offset location.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, &TimestampError{Value: s, Err: err}
	}
	_, offset := t.Zone()
	if offset == 0 {
		return t.UTC(), nil
	}
	return t.In(time.FixedZone("", offset)), nil
}

func str(raw RawReading, field string) string {
	v, _ := raw.Field(field)
	s, _ := v.Str()
	return s
}

func num(raw RawReading, field string) float64 {
	v, _ := raw.Field(field)
	f, _ := v.Num()
	return f
}
