// Package source reads raw sensor readings from the places they originate:
// CSV exports, static in-memory lists, a Kafka topic or a SQLite table.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
	"k8s.io/klog/v2"
)

// ErrSourceUnavailable is returned when the underlying origin cannot be read at all
var ErrSourceUnavailable = errors.New("source unavailable")

// Source produces raw, unvalidated readings
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string
	// ReadLogs returns the readings currently available from the source
	ReadLogs(ctx context.Context) ([]record.RawReading, error)
}

// Kind selects a Source implementation
type Kind int

const (
	KindCSV Kind = iota
	KindMemory
	KindKafka
	KindSQLite
)

func (k Kind) String() string {
	switch k {
	case KindCSV:
		return "csv"
	case KindMemory:
		return "memory"
	case KindKafka:
		return "kafka"
	case KindSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Spec describes a source to build. Only the options of the selected Kind are read.
type Spec struct {
	Kind     Kind
	Name     string
	CSV      CSVOptions
	Readings []record.RawReading
	Kafka    KafkaOptions
	SQLite   SQLiteOptions
}

// New builds the Source described by spec
func New(spec Spec) (Source, error) {
	var (
		src Source
		err error
	)
	switch spec.Kind {
	case KindCSV:
		src = NewCSVSource(spec.CSV)
	case KindMemory:
		src = NewMemorySource(spec.Name, spec.Readings...)
	case KindKafka:
		src, err = NewKafkaSource(spec.Kafka)
	case KindSQLite:
		src = NewSQLiteSource(spec.SQLite)
	default:
		return nil, fmt.Errorf("unknown source kind: %v", spec.Kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Close releases resources held by src, if it holds any
func Close(src Source) error {
	if c, ok := src.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

type instrumented struct {
	Source
}

// Instrument wraps src so every read is logged with its size and duration.
func Instrument(src Source) Source {
	return &instrumented{Source: src}
}

func (i *instrumented) ReadLogs(ctx context.Context) ([]record.RawReading, error) {
	start := time.Now()
	klog.V(2).InfoS("Reading source", "source", i.Name())

	readings, err := i.Source.ReadLogs(ctx)
	if err != nil {
		klog.V(2).InfoS("Source read failed", "source", i.Name(), "duration", time.Since(start), "err", err)
		return readings, err
	}

	klog.V(2).InfoS("Source read completed",
		"source", i.Name(),
		"readings", len(readings),
		"duration", time.Since(start))
	return readings, nil
}

func (i *instrumented) Close() error {
	return Close(i.Source)
}
