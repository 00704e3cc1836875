package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/clock"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/metrics"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

// fileTimeLayout is the timestamp suffix of report file names
const fileTimeLayout = "20060102_150405"

// CSVWriter writes reports as CSV files into a directory
type CSVWriter struct {
	dir   string
	clock clock.Clock
}

// NewCSVWriter creates a writer for dir. A nil clock means wall-clock time.
func NewCSVWriter(dir string, clk clock.Clock) *CSVWriter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &CSVWriter{dir: dir, clock: clk}
}

// Execute generates rep from records and writes it to
// {dir}/{Name}_{YYYYMMDD_HHMMSS}.csv. It returns the file path, or "" when
// the report had nothing to write.
func (w *CSVWriter) Execute(rep Report, records []record.Record) (string, error) {
	table := rep.Generate(records)
	if len(table.Rows) == 0 && !table.WriteEmpty {
		klog.InfoS("No rows for report, nothing written", "report", rep.Name())
		return "", nil
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", w.dir, err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", rep.Name(), w.clock.Now().Format(fileTimeLayout)))
	if err := writeTable(path, table); err != nil {
		return "", err
	}

	metrics.ReportsWritten.WithLabelValues(rep.Name()).Inc()
	klog.InfoS("Report written", "report", rep.Name(), "path", path, "rows", len(table.Rows))
	return path, nil
}

func writeTable(path string, table Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(table.Columns); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report header: %w", err)
	}
	if err := cw.WriteAll(table.Rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report rows: %w", err)
	}
	return f.Close()
}
