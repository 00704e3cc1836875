// Package report builds tabular reports from cache snapshots and writes them as CSV files.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// ErrUnsupportedReportType is returned for a report kind the factory does not know
var ErrUnsupportedReportType = errors.New("unsupported report type")

// Default alert thresholds
const (
	DefaultCO2Threshold  = 800.0
	DefaultTempThreshold = 30.0
)

// Type selects a report implementation
type Type int

const (
	TypeRoomStatus Type = iota
	TypeCriticalAlerts
)

var typeNames = map[Type]string{
	TypeRoomStatus:     "room_status",
	TypeCriticalAlerts: "critical_alerts",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType resolves a report name such as "room_status"
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedReportType, name)
}

// Available returns every supported report type in declaration order
func Available() []Type {
	return []Type{TypeRoomStatus, TypeCriticalAlerts}
}

// Options holds parameters shared by report constructors
type Options struct {
	CO2Threshold  float64
	TempThreshold float64
}

// DefaultOptions returns the default alert thresholds
func DefaultOptions() Options {
	return Options{CO2Threshold: DefaultCO2Threshold, TempThreshold: DefaultTempThreshold}
}

// Table is the tabular output of a report
type Table struct {
	Columns []string
	Rows    [][]string
	// WriteEmpty writes a header-only file when Rows is empty
	WriteEmpty bool
}

// Report turns a snapshot of records into a table
type Report interface {
	// Name is used as the output file prefix
	Name() string
	Generate(records []record.Record) Table
}

// New creates the report selected by t
func New(t Type, opts Options) (Report, error) {
	switch t {
	case TypeRoomStatus:
		return &RoomStatus{}, nil
	case TypeCriticalAlerts:
		return &CriticalAlerts{CO2Threshold: opts.CO2Threshold, TempThreshold: opts.TempThreshold}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedReportType, t)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
