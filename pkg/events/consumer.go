package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"shortlink/pkg/domain"
	"shortlink/pkg/logger"
)

// Consumer читает события кликов в составе consumer group.
// Оффсеты коммитятся автоматически и отстают от чтения: доставка
// at-least-once, дубликаты поглощаются аддитивной агрегацией.
type Consumer struct {
	client *kgo.Client
	topic  string
}

// ConsumerOptions настройки consumer'а
type ConsumerOptions struct {
	Brokers      []string
	Topic        string
	Group        string
	ConsumerName string
}

// NewConsumer создаёт consumer с чтением с начала топика для новой группы
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(opts.Brokers...),
		kgo.ConsumerGroup(opts.Group),
		kgo.ConsumeTopics(opts.Topic),
		kgo.ClientID(opts.ConsumerName),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitInterval(time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &Consumer{client: client, topic: opts.Topic}, nil
}

// Poll читает доступные события, блокируясь не дольше timeout.
// Таймаут - штатная ситуация (пустой срез, nil error). Сообщения с
// нечитаемым payload пропускаются с warning'ом.
func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) ([]domain.ClickEvent, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := c.client.PollFetches(pollCtx)
	if fetches.IsClientClosed() {
		return nil, errors.New("kafka client closed")
	}

	var events []domain.ClickEvent
	fetches.EachError(func(topic string, partition int32, err error) {
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			logger.Log.Warn("Kafka fetch error", "topic", topic, "partition", partition, "error", err)
		}
	})
	fetches.EachRecord(func(r *kgo.Record) {
		var event domain.ClickEvent
		if err := json.Unmarshal(r.Value, &event); err != nil {
			logger.Log.Warn("Invalid click event payload, skipping", "error", err)
			return
		}
		events = append(events, event)
	})

	return events, nil
}

// Close коммитит оффсеты и закрывает клиент
func (c *Consumer) Close() {
	c.client.Close()
}
