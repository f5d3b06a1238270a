package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JhonesBR/go-coinbot/internal/txlog"
)

var ErrClosed = errors.New("publisher closed")

// Publisher announces settled trades to downstream consumers.
type Publisher interface {
	PublishTrade(ctx context.Context, record txlog.Record) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishTrade(context.Context, txlog.Record) error { return nil }
func (Nop) Close() error                                     { return nil }

// TradeEvent is the message body published for a settled trade.
type TradeEvent struct {
	EventID string       `json:"event_id"`
	Type    string       `json:"type"`
	Trade   txlog.Record `json:"trade"`
}

// AMQPPublisher publishes trade events to a durable fanout exchange.
type AMQPPublisher struct {
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{exchange: exchange, conn: conn, ch: ch}, nil
}

func (p *AMQPPublisher) PublishTrade(ctx context.Context, record txlog.Record) error {
	event := TradeEvent{
		EventID: uuid.NewString(),
		Type:    "trade." + string(record.Type),
		Trade:   record,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode trade event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return ErrClosed
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
		MessageId:    event.EventID,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
