package kafka

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Producer lazily manages one writer per topic.
type Producer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewProducer creates a Producer for brokers.
func NewProducer(brokers []string) *Producer {
	return &Producer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes msgs to topic synchronously, waiting for all in-sync replicas.
func (p *Producer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerFor(topic).WriteMessages(ctx, msgs...)
}

func (p *Producer) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}

// TopicAdmin creates topics through the cluster controller.
type TopicAdmin struct {
	client            *kafka.Client
	partitions        int
	replicationFactor int
}

// NewTopicAdmin returns an admin for brokers creating single-partition topics.
func NewTopicAdmin(brokers []string) *TopicAdmin {
	return &TopicAdmin{
		client:            &kafka.Client{Addr: kafka.TCP(brokers...)},
		partitions:        1,
		replicationFactor: 1,
	}
}

// CreateTopic creates topic. An existing topic yields kafka.TopicAlreadyExists.
func (a *TopicAdmin) CreateTopic(ctx context.Context, topic string) error {
	resp, err := a.client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{
			Topic:             topic,
			NumPartitions:     a.partitions,
			ReplicationFactor: a.replicationFactor,
		}},
	})
	if err != nil {
		return err
	}
	return resp.Errors[topic]
}
