// Package mirror publishes a copy of every attempted ledger record to Kafka
// for downstream consumers. Publishing is best-effort.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gyaneshwarpardhi/shiftbot/internal/ledger"
	"github.com/gyaneshwarpardhi/shiftbot/internal/metrics"
)

const writeTimeout = 2 * time.Second

// Config selects the brokers and topic. Empty Brokers disables the mirror.
type Config struct {
	Brokers []string
	Topic   string
}

// Envelope is the mirrored message value.
type Envelope struct {
	ledger.Record
	Delivered bool `json:"delivered"`
}

// MessageWriter is the subset of *kafka.Writer the mirror needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka mirrors records to a topic keyed by user.
type Kafka struct {
	w MessageWriter
}

// NewKafka builds a producer for cfg.
func NewKafka(cfg Config) *Kafka {
	return NewWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: writeTimeout,
		BatchSize:    1,
	})
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w MessageWriter) *Kafka {
	return &Kafka{w: w}
}

// Publish writes rec with its delivery flag.
func (k *Kafka) Publish(ctx context.Context, rec ledger.Record, delivered bool) error {
	value, err := json.Marshal(Envelope{Record: rec, Delivered: delivered})
	if err != nil {
		metrics.MirrorPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("encode mirror record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	err = k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.User),
		Value: value,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(rec.Action)},
		},
	})
	if err != nil {
		metrics.MirrorPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("kafka write: %w", err)
	}
	metrics.MirrorPublished.WithLabelValues("ok").Inc()
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}
