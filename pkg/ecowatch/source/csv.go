package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// DefaultColumns maps the headers of the sensor CSV export to raw reading fields
var DefaultColumns = map[string]string{
	"Timestamp":   record.FieldTimestamp,
	"SensorType":  record.FieldSensorType,
	"Room":        record.FieldRoom,
	"Temperature": record.FieldTemperature,
	"Humidity":    record.FieldHumidity,
	"CO2Level":    record.FieldCO2Level,
}

// CSVOptions configures a CSVSource
type CSVOptions struct {
	Path string
	// Columns renames headers to field names; headers not listed keep their name.
	// Nil means DefaultColumns.
	Columns map[string]string
}

// CSVSource reads readings from a CSV file with a header row. Rows already
// returned are remembered, so each read yields only rows appended since the last.
type CSVSource struct {
	path    string
	columns map[string]string

	mu sync.Mutex
	// consumed data rows
	consumed int
}

// NewCSVSource creates a CSV-backed source
func NewCSVSource(opts CSVOptions) *CSVSource {
	columns := opts.Columns
	if columns == nil {
		columns = DefaultColumns
	}
	return &CSVSource{path: opts.Path, columns: columns}
}

func (s *CSVSource) Name() string {
	return "csv:" + s.path
}

// ReadLogs returns the rows appended since the previous read. Column types are
// inferred over the whole file: a column whose non-empty cells all parse as
// numbers yields number values, every other column yields strings. Empty
// cells are null. A file shorter than what was already consumed is treated as
// replaced and read from the start.
func (s *CSVSource) ReadLogs(ctx context.Context) ([]record.RawReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: file not found: %s", ErrSourceUnavailable, s.path)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			s.consumed = 0
			return []record.RawReading{}, nil
		}
		return nil, fmt.Errorf("%w: failed to read CSV header from %s: %v", ErrSourceUnavailable, s.path, err)
	}
	fields := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if renamed, ok := s.columns[h]; ok {
			h = renamed
		}
		fields[i] = h
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse CSV %s: %v", ErrSourceUnavailable, s.path, err)
		}
		rows = append(rows, row)
	}

	if len(rows) < s.consumed {
		klog.V(2).InfoS("CSV file shrank, reading from the start", "path", s.path, "rows", len(rows), "consumed", s.consumed)
		s.consumed = 0
	}

	numeric := numericColumns(len(fields), rows)
	fresh := rows[s.consumed:]
	readings := make([]record.RawReading, 0, len(fresh))
	for _, row := range fresh {
		values := make(map[string]record.Value, len(fields))
		for i, name := range fields {
			values[name] = cellValue(row[i], numeric[i])
		}
		readings = append(readings, record.NewRawReading(values))
	}
	s.consumed = len(rows)
	return readings, nil
}

// numericColumns reports, per column, whether every non-empty cell is a number
func numericColumns(n int, rows [][]string) []bool {
	numeric := make([]bool, n)
	for col := 0; col < n; col++ {
		seen := false
		numeric[col] = true
		for _, row := range rows {
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric[col] = false
				break
			}
		}
		if !seen {
			numeric[col] = false
		}
	}
	return numeric
}

func cellValue(cell string, numeric bool) record.Value {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return record.NullValue()
	}
	if numeric {
		f, _ := strconv.ParseFloat(cell, 64)
		return record.NumberValue(f)
	}
	return record.StringValue(cell)
}
