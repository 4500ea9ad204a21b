package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OrdersExchange carries one message per order row change, routed by owner
// key. Subscribers bind per-owner keys or the wildcard for the global feed.
const OrdersExchange = "orders.events"

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(host string, port int, user, pass string) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", user, pass, host, port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) DeclareAll() error {
	if c == nil || c.ch == nil {
		return fmt.Errorf("nil channel")
	}
	return c.ch.ExchangeDeclare(OrdersExchange, "topic", true, false, false, false, nil)
}

// Channel opens a fresh channel on the shared connection. Each live feed
// subscription gets its own so closing one never disturbs another.
func (c *Client) Channel() (*amqp.Channel, error) {
	if c == nil || c.conn == nil {
		return nil, fmt.Errorf("nil connection")
	}
	return c.conn.Channel()
}

func (c *Client) PublishPersistent(ctx context.Context, exchange, key string, body []byte) error {
	return c.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         body,
	})
}
