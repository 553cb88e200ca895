//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"credbridge/internal/event"
	"credbridge/internal/platform/events"
	"credbridge/pkg/testutil/containers"
)

func TestKafkaSinkPublishesKeyedEnvelope(t *testing.T) {
	broker := containers.NewKafkaContainer(t).Broker
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	const topic = "credbridge.credential-events"
	sink, err := events.NewKafka(broker, topic, logger)
	require.NoError(t, err)
	require.NotNil(t, sink)
	t.Cleanup(sink.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, sink.PublishCredentialCreated(ctx, event.CredentialCreated{
		CredentialID: 9001,
		GroupID:      555,
		CourseID:     10,
		UserID:       42,
		IssuedOn:     "2024-02-09",
	}))
	require.NoError(t, sink.PublishGradeUpgraded(ctx, event.GradeUpgraded{
		CredentialID: 9001,
		CourseID:     10,
		UserID:       42,
		OldGrade:     70,
		NewGrade:     85,
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	var records []*kgo.Record
	for len(records) < 2 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, fetches.Err())
		records = append(records, fetches.Records()...)
	}

	var envelope struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	require.Equal(t, "9001", string(records[0].Key))
	require.NoError(t, json.Unmarshal(records[0].Value, &envelope))
	require.Equal(t, "credential_created", envelope.Kind)

	require.Equal(t, "9001", string(records[1].Key))
	require.NoError(t, json.Unmarshal(records[1].Value, &envelope))
	require.Equal(t, "grade_upgraded", envelope.Kind)
}
