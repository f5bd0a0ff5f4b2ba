package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stanhq/svcmarket/internal/models"
)

// Producer handles publishing market data events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishTickRecorded publishes an event for a captured intraday tick
func (p *Producer) PublishTickRecorded(ctx context.Context, symbol string, price decimal.Decimal) error {
	event := models.MarketEvent{
		EventType: "TICK_RECORDED",
		Symbol:    symbol,
		Price:     &price,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, symbol, event)
}

// PublishJobCompleted publishes an event for a finished job run
func (p *Producer) PublishJobCompleted(ctx context.Context, job string, successCount, errorCount int) error {
	event := models.MarketEvent{
		EventType: "JOB_COMPLETED",
		Job:       fmt.Sprintf("%s success=%d errors=%d", job, successCount, errorCount),
		Timestamp: time.Now(),
	}
	return p.publish(ctx, job, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.MarketEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
