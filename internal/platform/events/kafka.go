// Package events publishes the bridge's domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"credbridge/internal/event"
)

// KafkaSink publishes domain events to a single topic, keyed by credential
// id so consumers see per-credential ordering.
type KafkaSink struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafka connects a producer to the given brokers. Brokers is a
// comma-separated list; an empty list returns nil so callers can run without
// an event bus.
func NewKafka(brokers, topic string, logger *slog.Logger) (*KafkaSink, error) {
	var seeds []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			seeds = append(seeds, b)
		}
	}
	if len(seeds) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client, logger: logger}, nil
}

func (s *KafkaSink) PublishCredentialCreated(ctx context.Context, ev event.CredentialCreated) error {
	return s.publish(ctx, "credential_created", ev.CredentialID, ev)
}

func (s *KafkaSink) PublishGradeUpgraded(ctx context.Context, ev event.GradeUpgraded) error {
	return s.publish(ctx, "grade_upgraded", ev.CredentialID, ev)
}

func (s *KafkaSink) publish(ctx context.Context, kind string, credentialID int64, payload any) error {
	value, err := json.Marshal(struct {
		Kind string `json:"kind"`
		Data any    `json:"data"`
	}{Kind: kind, Data: payload})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	record := &kgo.Record{
		Key:   []byte(strconv.FormatInt(credentialID, 10)),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s event: %w", kind, err)
	}
	s.logger.InfoContext(ctx, "event published", "kind", kind, "credential_id", credentialID)
	return nil
}

// Close flushes buffered records and releases the producer.
func (s *KafkaSink) Close() {
	s.client.Close()
}
