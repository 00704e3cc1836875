// Package ingest turns raw source readings into validated records.
package ingest

import (
	"context"
	"errors"

	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/metrics"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
	"github.com/juanxmartel/ecowatch/pkg/ecowatch/source"
)

// Pipeline reads from one source and keeps only readings that make valid records
type Pipeline struct {
	src source.Source
}

// NewPipeline creates a pipeline over src
func NewPipeline(src source.Source) *Pipeline {
	return &Pipeline{src: src}
}

// Source returns the source this pipeline reads from
func (p *Pipeline) Source() source.Source {
	return p.src
}

// ProcessNewLogs reads the source once and returns the readings that passed
// validation and timestamp parsing, in source order. Invalid readings are
// logged and dropped. A source that cannot be read yields an empty result.
func (p *Pipeline) ProcessNewLogs(ctx context.Context) []record.Record {
	name := p.src.Name()

	raws, err := p.src.ReadLogs(ctx)
	if err != nil {
		switch {
		case errors.Is(err, source.ErrSourceUnavailable):
			metrics.SourceErrors.WithLabelValues(name, metrics.ReasonUnavailable).Inc()
			klog.ErrorS(err, "Source unavailable, continuing with no new records", "source", name)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			metrics.SourceErrors.WithLabelValues(name, metrics.ReasonCanceled).Inc()
			klog.V(2).InfoS("Source read interrupted", "source", name, "err", err)
		default:
			metrics.SourceErrors.WithLabelValues(name, metrics.ReasonError).Inc()
			klog.ErrorS(err, "Failed to read source", "source", name)
		}
		return []record.Record{}
	}

	records := make([]record.Record, 0, len(raws))
	var invalid, malformed int
	for _, raw := range raws {
		r, err := record.FromRaw(raw)
		if err != nil {
			result := metrics.ResultInvalid
			if errors.Is(err, record.ErrMalformedTimestamp) {
				result = metrics.ResultMalformedTimestamp
				malformed++
			} else {
				invalid++
			}
			metrics.IngestedReadings.WithLabelValues(name, result).Inc()
			klog.Warningf("Dropping reading from %s: %v: %s", name, err, raw)
			continue
		}
		metrics.IngestedReadings.WithLabelValues(name, metrics.ResultAccepted).Inc()
		records = append(records, r)
	}

	klog.V(2).InfoS("Processed source readings",
		"source", name,
		"read", len(raws),
		"accepted", len(records),
		"invalid", invalid,
		"malformedTimestamp", malformed)
	return records
}
