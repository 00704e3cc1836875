package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// DefaultSQLiteQuery selects the reading schema from a readings table in insertion order
const DefaultSQLiteQuery = "SELECT timestamp, sensor_type, room, temperature, humidity, co2_level FROM readings ORDER BY rowid"

// SQLiteOptions configures a SQLiteSource
type SQLiteOptions struct {
	Path string
	// Query must return columns named after the reading fields, in a stable
	// order where new rows come last. Empty means DefaultSQLiteQuery.
	Query string
}

// SQLiteSource reads readings from a local SQLite database, one row per
// reading. The table is treated as append-only: each read skips the rows
// returned by earlier reads.
type SQLiteSource struct {
	path  string
	query string

	mu   sync.Mutex
	seen int
}

// NewSQLiteSource creates a SQLite-backed source. The database is opened on every read.
func NewSQLiteSource(opts SQLiteOptions) *SQLiteSource {
	query := opts.Query
	if query == "" {
		query = DefaultSQLiteQuery
	}
	return &SQLiteSource{path: opts.Path, query: query}
}

func (s *SQLiteSource) Name() string {
	return "sqlite:" + s.path
}

func (s *SQLiteSource) ReadLogs(ctx context.Context) ([]record.RawReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// sqlite3 would silently create a missing file
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: database not found: %s", ErrSourceUnavailable, s.path)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	db, err := sql.Open("sqlite3", "file:"+s.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrSourceUnavailable, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query readings: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read columns: %v", ErrSourceUnavailable, err)
	}

	readings := make([]record.RawReading, 0)
	n := 0
	for rows.Next() {
		n++
		if n <= s.seen {
			continue
		}
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %v", ErrSourceUnavailable, err)
		}

		values := make(map[string]record.Value, len(columns))
		for i, name := range columns {
			values[name] = sqlValue(cells[i])
		}
		readings = append(readings, record.NewRawReading(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating rows: %v", ErrSourceUnavailable, err)
	}
	if n < s.seen {
		klog.V(2).InfoS("SQLite table shrank, following from its current end", "path", s.path, "rows", n, "seen", s.seen)
	}
	s.seen = n
	return readings, nil
}

// sqlValue classifies a scanned cell. DATETIME columns come back as time.Time
// and are handed on as ISO-8601 text.
func sqlValue(v any) record.Value {
	if t, ok := v.(time.Time); ok {
		return record.StringValue(t.Format(time.RFC3339Nano))
	}
	return record.ValueOf(v)
}
