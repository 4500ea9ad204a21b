package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"ordersync/internal/common/logger"
	"ordersync/internal/common/mq"
	"ordersync/internal/domain"
)

// AMQPOpener implements Opener over the orders.events topic exchange. Each
// open channel is an exclusive auto-delete queue on its own AMQP channel, so
// Close tears the whole consumption down with it.
type AMQPOpener struct {
	client *mq.Client
	lg     *logger.Logger
}

func NewAMQPOpener(client *mq.Client, lg *logger.Logger) *AMQPOpener {
	return &AMQPOpener{client: client, lg: lg}
}

func (o *AMQPOpener) OpenChannel(ctx context.Context, f TopicFilter) (Handle, error) {
	ch, err := o.client.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel for %s: %w", f.Topic, err)
	}

	bindKey := "order.*"
	if f.OwnerKey != "" {
		bindKey = routingKey(f.OwnerKey)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue for %s: %w", f.Topic, err)
	}
	if err := ch.QueueBind(q.Name, bindKey, mq.OrdersExchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("bind %s to %s: %w", q.Name, bindKey, err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}

	h := &amqpHandle{ch: ch, events: make(chan domain.OrderEvent)}
	go h.pump(deliveries, o.lg, f.Topic)
	return h, nil
}

type amqpHandle struct {
	ch     *amqp.Channel
	events chan domain.OrderEvent
	once   sync.Once
}

func (h *amqpHandle) Events() <-chan domain.OrderEvent { return h.events }

func (h *amqpHandle) Close() error {
	var err error
	h.once.Do(func() { err = h.ch.Close() })
	return err
}

// pump decodes deliveries into order events. Closing the AMQP channel closes
// the deliveries channel, which closes the events channel and ends the
// registry's fan-out loop.
func (h *amqpHandle) pump(deliveries <-chan amqp.Delivery, lg *logger.Logger, topic string) {
	defer close(h.events)
	for d := range deliveries {
		var ev domain.OrderEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			lg.Error("event_decode", err, map[string]any{"topic": topic})
			continue
		}
		if ev.Kind != domain.EventDelete {
			if err := ev.Normalize(); err != nil {
				lg.Error("event_status", err, map[string]any{"topic": topic, "order_id": ev.Row.ID})
				continue
			}
		}
		h.events <- ev
	}
}

// Publisher pushes row-change events into the exchange after confirmed
// writes. The repository layer is its only caller.
type Publisher struct {
	client *mq.Client
	lg     *logger.Logger
}

func NewPublisher(client *mq.Client, lg *logger.Logger) *Publisher {
	return &Publisher{client: client, lg: lg}
}

func (p *Publisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := routingKey(ev.Row.OwnerKey())
	if err := p.client.PublishPersistent(ctx, mq.OrdersExchange, key, body); err != nil {
		return fmt.Errorf("publish %s %d: %w", ev.Kind, ev.Row.ID, err)
	}
	return nil
}
