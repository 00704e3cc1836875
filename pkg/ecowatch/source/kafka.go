package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"k8s.io/klog/v2"

	"github.com/juanxmartel/ecowatch/pkg/ecowatch/record"
)

const (
	defaultKafkaMaxMessages = 1000
	defaultKafkaPollTimeout = 2 * time.Second
)

// KafkaOptions configures a KafkaSource
type KafkaOptions struct {
	Brokers []string
	Topic   string
	GroupID string
	// MaxMessages bounds a single read
	MaxMessages int
	// PollTimeout is how long a read waits for the next message before
	// treating the topic as drained
	PollTimeout time.Duration
}

// messageReader is the subset of *kafka.Reader used by KafkaSource
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource drains JSON-encoded readings from a Kafka topic. Each read
// returns what is available within the poll timeout and commits it.
type KafkaSource struct {
	opts   KafkaOptions
	reader messageReader
	// dial checks broker reachability before consuming; nil skips the check
	dial func(ctx context.Context) error
}

// NewKafkaSource creates a consumer-group reader on opts.Topic
func NewKafkaSource(opts KafkaOptions) (*KafkaSource, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if strings.TrimSpace(opts.Topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if strings.TrimSpace(opts.GroupID) == "" {
		return nil, errors.New("kafka consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     opts.Brokers,
		GroupID:     opts.GroupID,
		Topic:       opts.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     200 * time.Millisecond,
	})

	s := newKafkaSource(opts, reader)
	s.dial = func(ctx context.Context) error {
		conn, err := kafka.DialContext(ctx, "tcp", opts.Brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}
	return s, nil
}

func newKafkaSource(opts KafkaOptions, reader messageReader) *KafkaSource {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = defaultKafkaMaxMessages
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultKafkaPollTimeout
	}
	return &KafkaSource{opts: opts, reader: reader}
}

func (s *KafkaSource) Name() string {
	return "kafka:" + s.opts.Topic
}

// ReadLogs fetches up to MaxMessages messages. Messages that are not a JSON
// object are logged, committed and skipped; they do not fail the read.
func (s *KafkaSource) ReadLogs(ctx context.Context) ([]record.RawReading, error) {
	if s.dial != nil {
		dialCtx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
		err := s.dial(dialCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: kafka brokers %s unreachable: %v",
				ErrSourceUnavailable, strings.Join(s.opts.Brokers, ","), err)
		}
	}

	readings := make([]record.RawReading, 0)
	var fetched []kafka.Message
	for len(fetched) < s.opts.MaxMessages {
		if err := ctx.Err(); err != nil {
			break
		}
		fetchCtx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
		msg, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			if len(fetched) == 0 {
				return nil, fmt.Errorf("%w: failed to fetch from topic %s: %v", ErrSourceUnavailable, s.opts.Topic, err)
			}
			klog.ErrorS(err, "Kafka fetch failed, returning partial batch", "topic", s.opts.Topic, "fetched", len(fetched))
			break
		}
		fetched = append(fetched, msg)

		raw, err := decodeMessage(msg.Value)
		if err != nil {
			klog.Warningf("Skipping undecodable kafka message at %s/%d@%d: %v",
				msg.Topic, msg.Partition, msg.Offset, err)
			continue
		}
		readings = append(readings, raw)
	}

	if len(fetched) > 0 {
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PollTimeout)
		if err := s.reader.CommitMessages(commitCtx, fetched...); err != nil {
			klog.ErrorS(err, "Failed to commit kafka offsets", "topic", s.opts.Topic, "messages", len(fetched))
		}
		cancel()
	}
	return readings, nil
}

// Close shuts down the underlying reader
func (s *KafkaSource) Close() error {
	if s == nil || s.reader == nil {
		return nil
	}
	return s.reader.Close()
}

// decodeMessage turns a JSON object into a raw reading. Numbers keep full
// precision until classified; nested values become KindOther.
func decodeMessage(payload []byte) (record.RawReading, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return record.RawReading{}, fmt.Errorf("decode reading: %w", err)
	}
	if fields == nil {
		return record.RawReading{}, errors.New("decode reading: payload is not a JSON object")
	}
	return record.RawFromMap(fields), nil
}
