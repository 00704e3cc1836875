package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// MemorySource serves a fixed list of readings once, e.g. late events replayed by hand
type MemorySource struct {
	name     string
	readings []record.RawReading

	mu     sync.Mutex
	served bool
}

// NewMemorySource creates a source returning readings on its first read and
// nothing afterwards
func NewMemorySource(name string, readings ...record.RawReading) *MemorySource {
	if name == "" {
		name = "memory"
	}
	return &MemorySource{
		name:     name,
		readings: append([]record.RawReading(nil), readings...),
	}
}

// NewMemorySourceFromMaps classifies plain decoded values into raw readings
func NewMemorySourceFromMaps(name string, maps ...map[string]any) *MemorySource {
	readings := make([]record.RawReading, 0, len(maps))
	for _, m := range maps {
		readings = append(readings, record.RawFromMap(m))
	}
	return NewMemorySource(name, readings...)
}

func (s *MemorySource) Name() string {
	return s.name
}

func (s *MemorySource) ReadLogs(ctx context.Context) ([]record.RawReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served {
		return []record.RawReading{}, nil
	}
	s.served = true
	return append([]record.RawReading(nil), s.readings...), nil
}

// NewMemorySourceFromJSON decodes a JSON array of reading objects
func NewMemorySourceFromJSON(name string, data []byte) (*MemorySource, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var maps []map[string]any
	if err := dec.Decode(&maps); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	return NewMemorySourceFromMaps(name, maps...), nil
}
