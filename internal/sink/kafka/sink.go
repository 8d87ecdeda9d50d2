// Package kafka publishes synced events to Kafka, one topic per bucket.
//
// When a schema registry is configured, payloads are framed with the Confluent wire format
// (magic byte 0, big-endian schema ID, JSON body).
package kafka

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	"github.com/AndreyKarmanov/aw-garmin/internal/events"
	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

type topicCreator interface {
	CreateTopic(context.Context, string) error
}

// Sink implements the sync sink on top of Kafka topics.
type Sink struct {
	producer    messageWriter
	admin       topicCreator
	registry    schemaRegistrar
	topicPrefix string
	source      string
	schemaIDs   sync.Map
	now         func() time.Time
	logger      zerolog.Logger
}

// Option customises a Sink.
type Option func(*Sink)

// WithSchemaRegistry enables Confluent framing with schemas registered in registry.
func WithSchemaRegistry(registry schemaRegistrar) Option {
	return func(s *Sink) { s.registry = registry }
}

// WithTopicPrefix prepends prefix to every bucket topic.
func WithTopicPrefix(prefix string) Option {
	return func(s *Sink) { s.topicPrefix = prefix }
}

// New constructs a Sink.
func New(producer messageWriter, admin topicCreator, opts ...Option) *Sink {
	s := &Sink{
		producer: producer,
		admin:    admin,
		source:   "garmin",
		now:      time.Now,
		logger:   xlog.WithComponent("kafka-sink"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Topic returns the topic events for bucket are published to.
func (s *Sink) Topic(bucket string) string {
	return s.topicPrefix + bucket
}

func subject(topic string) string {
	return topic + "-value"
}

// EnsureBucket creates the bucket topic and, with a registry, registers its value schema.
func (s *Sink) EnsureBucket(ctx context.Context, name, _ string) error {
	topic := s.Topic(name)
	if s.registry != nil {
		if _, err := s.schemaID(ctx, topic); err != nil {
			return fmt.Errorf("register schema for %s: %w", topic, err)
		}
	}

	err := s.admin.CreateTopic(ctx, topic)
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return domain.ErrBucketExists
	}
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	s.logger.Info().Str("topic", topic).Msg("created topic")
	return nil
}

// InsertEvent publishes evt to the bucket topic.
func (s *Sink) InsertEvent(ctx context.Context, bucket string, evt domain.Event) error {
	topic := s.Topic(bucket)
	payload := events.EventSynced{
		EventID:         events.ID(bucket, evt).String(),
		Bucket:          bucket,
		Title:           evt.Title,
		StartedAt:       evt.Start.UTC(),
		EndedAt:         evt.End().UTC(),
		DurationSeconds: evt.Duration.Seconds(),
		Data:            evt.Attributes,
		Source:          s.source,
		Version:         events.Version,
	}
	if payload.Data == nil {
		payload.Data = map[string]any{}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if s.registry != nil {
		id, err := s.schemaID(ctx, topic)
		if err != nil {
			return err
		}
		body = encodeWireFormat(id, body)
	}

	msg := kafka.Message{
		Key:   []byte(payload.EventID),
		Value: body,
		Time:  s.now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("event.synced")},
			{Key: "version", Value: []byte(events.Version)},
		},
	}
	if err := s.producer.WriteMessages(ctx, topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (s *Sink) schemaID(ctx context.Context, topic string) (int, error) {
	if cached, ok := s.schemaIDs.Load(topic); ok {
		return cached.(int), nil
	}
	id, err := s.registry.EnsureSchema(ctx, subject(topic), events.EventSyncedSchema)
	if err != nil {
		return 0, err
	}
	s.schemaIDs.Store(topic, id)
	return id, nil
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
