package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

var ErrNoBrokers = errors.New("kafka: no seed brokers configured")

// Message is a payload that knows its own partition key
type Message interface {
	Key() string
}

// Publisher publishes keyed JSON messages
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, msg Message, headers map[string]string) error
}

// ProducerConfig holds producer settings
type ProducerConfig struct {
	Brokers        []string
	ClientID       string
	ProduceTimeout time.Duration
	RecordRetries  int
}

// DefaultProducerConfig returns producer defaults
func DefaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		Brokers:        []string{"localhost:9092"},
		ClientID:       "eventify",
		ProduceTimeout: 10 * time.Second,
		RecordRetries:  5,
	}
}

// Producer publishes records synchronously through a franz-go client
type Producer struct {
	client *kgo.Client
	config *ProducerConfig
}

// NewProducer creates a producer and checks that at least one broker answers
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if cfg == nil {
		cfg = DefaultProducerConfig()
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(cfg.RecordRetries),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach kafka brokers: %w", err)
	}

	logger.Get().Component("kafka").Info("kafka producer ready", zap.Strings("brokers", cfg.Brokers))
	return &Producer{client: client, config: cfg}, nil
}

// PublishJSON marshals msg and waits for the broker acknowledgement
func (p *Producer) PublishJSON(ctx context.Context, topic string, msg Message, headers map[string]string) error {
	record, err := NewRecord(topic, msg, headers)
	if err != nil {
		return err
	}

	if p.config.ProduceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ProduceTimeout)
		defer cancel()
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered records and closes the client
func (p *Producer) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// NewRecord builds a kafka record with a JSON value and string headers
func NewRecord(topic string, msg Message, headers map[string]string) (*kgo.Record, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message for %s: %w", topic, err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(msg.Key()),
		Value: value,
	}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return record, nil
}
