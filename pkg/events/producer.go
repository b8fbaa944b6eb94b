// Package events реализует шину событий кликов поверх Kafka (franz-go).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
)

// Producer публикует события кликов, ключуя их по short_code,
// чтобы сохранить порядок внутри партиции.
type Producer struct {
	client         *kgo.Client
	topic          string
	publishTimeout time.Duration
}

// ProducerOptions настройки producer'а
type ProducerOptions struct {
	Brokers        []string
	Topic          string
	PublishTimeout time.Duration
}

// NewProducer создаёт producer. Клиент kgo потокобезопасен.
func NewProducer(opts ProducerOptions) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(opts.Brokers...),
		kgo.DefaultProduceTopic(opts.Topic),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RecordDeliveryTimeout(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	timeout := opts.PublishTimeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}

	return &Producer{
		client:         client,
		topic:          opts.Topic,
		publishTimeout: timeout,
	}, nil
}

// PublishClick публикует событие клика с жёстким таймаутом.
// Возвращает true при успехе и false при любой ошибке или таймауте -
// вызывающий уходит в fallback-стрим, ошибка наружу не поднимается.
func (p *Producer) PublishClick(ctx context.Context, event *domain.ClickEvent) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Warn("Failed to marshal click event", "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ShortCode),
		Value: payload,
	}

	results := p.client.ProduceSync(ctx, record)
	if err := results.FirstErr(); err != nil {
		logger.Log.Warn("Kafka publish failed", "short_code", event.ShortCode, "error", err)
		return false
	}
	return true
}

// Close дожидается отправки буферизованных записей и закрывает клиент
func (p *Producer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx) //nolint:errcheck // best effort при выключении
	p.client.Close()
}
