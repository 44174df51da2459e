package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prohmpiriya/event-ledger/internal/domain"
	"github.com/prohmpiriya/event-ledger/pkg/kafka"
)

// LedgerEventPublisher publishes the ledger change feed.
type LedgerEventPublisher interface {
	// PublishEventCreated announces a newly created event.
	PublishEventCreated(ctx context.Context, event *domain.Event) error

	// PublishSeatReserved announces a committed reservation.
	PublishSeatReserved(ctx context.Context, event *domain.Event, account domain.Account) error

	// Close closes the publisher.
	Close() error
}

// KafkaLedgerPublisher implements LedgerEventPublisher using Kafka.
type KafkaLedgerPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// LedgerPublisherConfig contains configuration for the publisher.
type LedgerPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaLedgerPublisher creates a new Kafka ledger publisher.
func NewKafkaLedgerPublisher(ctx context.Context, cfg *LedgerPublisherConfig) (*KafkaLedgerPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ledger publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "ledger.events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "event-ledger"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "event-ledger-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaLedgerPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishEventCreated announces a newly created event.
func (p *KafkaLedgerPublisher) PublishEventCreated(ctx context.Context, event *domain.Event) error {
	return p.publish(ctx, domain.LedgerEventCreated, event, "")
}

// PublishSeatReserved announces a committed reservation.
func (p *KafkaLedgerPublisher) PublishSeatReserved(ctx context.Context, event *domain.Event, account domain.Account) error {
	return p.publish(ctx, domain.LedgerSeatReserved, event, account)
}

// Close closes the publisher.
func (p *KafkaLedgerPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

func (p *KafkaLedgerPublisher) publish(ctx context.Context, eventType domain.LedgerEventType, event *domain.Event, account domain.Account) error {
	msgID := uuid.New().String()
	payload := domain.NewLedgerEvent(eventType, msgID, event, account)

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	msg := &kafka.Message{
		Topic: p.topic,
		Key:   []byte(payload.Key()),
		Value: value,
		Headers: map[string]string{
			"event_type":   string(eventType),
			"event_id":     msgID,
			"source":       p.serviceName,
			"content_type": "application/json",
		},
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// NoOpLedgerPublisher is a no-op LedgerEventPublisher, used when Kafka
// is unavailable or disabled.
type NoOpLedgerPublisher struct{}

// NewNoOpLedgerPublisher creates a new no-op publisher.
func NewNoOpLedgerPublisher() *NoOpLedgerPublisher {
	return &NoOpLedgerPublisher{}
}

func (p *NoOpLedgerPublisher) PublishEventCreated(ctx context.Context, event *domain.Event) error {
	return nil
}

func (p *NoOpLedgerPublisher) PublishSeatReserved(ctx context.Context, event *domain.Event, account domain.Account) error {
	return nil
}

func (p *NoOpLedgerPublisher) Close() error {
	return nil
}
