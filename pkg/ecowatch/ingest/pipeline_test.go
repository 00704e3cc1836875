package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/metrics"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/source"
	sourcemock "github.com/juanxmartel/ecowatch/pkg/ecowatch/source/mock"
)

func reading(room, ts string) map[string]any {
	return map[string]any{
		"timestamp":   ts,
		"sensor_type": "CO2",
		"room":        room,
		"temperature": 21.0,
		"humidity":    45.0,
		"co2_level":   600.0,
	}
}

func raws(maps ...map[string]any) []record.RawReading {
	out := make([]record.RawReading, 0, len(maps))
	for _, m := range maps {
		out = append(out, record.RawFromMap(m))
	}
	return out
}

// captureLogs redirects klog into a buffer for the duration of the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	klog.LogToStderr(false)
	klog.SetOutput(&buf)
	t.Cleanup(func() {
		klog.SetOutput(os.Stderr)
		klog.LogToStderr(true)
	})
	return &buf
}

func TestProcessNewLogsAllValid(t *testing.T) {
	src := sourcemock.New("all-valid")
	src.On("ReadLogs", mock.Anything).Return(raws(
		reading("A", "2023-01-01T10:00:00Z"),
		reading("B", "2023-01-01T10:00:05+02:00"),
	), nil)

	records := NewPipeline(src).ProcessNewLogs(context.Background())

	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].Room)
	assert.Equal(t, "B", records[1].Room)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.IngestedReadings.WithLabelValues("all-valid", metrics.ResultAccepted)))
	src.AssertExpectations(t)
}

func TestProcessNewLogsMissingField(t *testing.T) {
	logs := captureLogs(t)

	bad := reading("A", "2023-01-01T10:00:01Z")
	delete(bad, "humidity")

	src := sourcemock.New("missing-field")
	src.On("ReadLogs", mock.Anything).Return(raws(
		reading("A", "2023-01-01T10:00:00Z"),
		bad,
		reading("B", "2023-01-01T10:00:02Z"),
	), nil)

	records := NewPipeline(src).ProcessNewLogs(context.Background())
	klog.Flush()

	require.Len(t, records, 2)
	assert.Equal(t, "2023-01-01 10:00:00 +0000 UTC", records[0].Timestamp.String())
	assert.Equal(t, "B", records[1].Room)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IngestedReadings.WithLabelValues("missing-field", metrics.ResultInvalid)))
	assert.Contains(t, logs.String(), `field "humidity" is missing`)
	assert.Contains(t, logs.String(), "Dropping reading from missing-field")
}

func TestProcessNewLogsMalformedTimestamp(t *testing.T) {
	logs := captureLogs(t)

	src := sourcemock.New("bad-timestamp")
	src.On("ReadLogs", mock.Anything).Return(raws(
		reading("A", "not-a-date"),
		reading("A", "2023-01-01T10:00:00Z"),
	), nil)

	records := NewPipeline(src).ProcessNewLogs(context.Background())
	klog.Flush()

	require.Len(t, records, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IngestedReadings.WithLabelValues("bad-timestamp", metrics.ResultMalformedTimestamp)))
	assert.Contains(t, logs.String(), "not-a-date")
}

func TestProcessNewLogsSourceUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{name: "unavailable", err: fmt.Errorf("%w: file not found: logs.csv", source.ErrSourceUnavailable), reason: metrics.ReasonUnavailable},
		{name: "canceled", err: context.Canceled, reason: metrics.ReasonCanceled},
		{name: "other read error", err: errors.New("boom"), reason: metrics.ReasonError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sourcemock.New("broken-" + tt.name)
			src.On("ReadLogs", mock.Anything).Return(nil, tt.err)

			records := NewPipeline(src).ProcessNewLogs(context.Background())

			assert.NotNil(t, records)
			assert.Empty(t, records)
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceErrors.WithLabelValues("broken-"+tt.name, tt.reason)))
			for _, other := range []string{metrics.ReasonUnavailable, metrics.ReasonCanceled, metrics.ReasonError} {
				if other != tt.reason {
					assert.Zero(t, testutil.ToFloat64(metrics.SourceErrors.WithLabelValues("broken-"+tt.name, other)))
				}
			}
		})
	}
}

func TestProcessNewLogsEmptySource(t *testing.T) {
	p := NewPipeline(&sourcemock.FuncSource{SourceName: "empty"})
	assert.Equal(t, "empty", p.Source().Name())
	assert.Empty(t, p.ProcessNewLogs(context.Background()))
}

func TestProcessNewLogsFromCSV(t *testing.T) {
	path := t.TempDir() + "/logs.csv"
	require.NoError(t, os.WriteFile(path, []byte(`Timestamp,SensorType,Room,Temperature,Humidity,CO2Level
2023-01-01T10:00:00Z,CO2,A,20,40,900
2023-01-01T10:01:00Z,CO2,A,21,,700
not-a-date,CO2,B,22,41,500
`), 0644))

	records := NewPipeline(source.NewCSVSource(source.CSVOptions{Path: path})).ProcessNewLogs(context.Background())

	require.Len(t, records, 1)
	assert.Equal(t, 900.0, records[0].CO2Level)
}
