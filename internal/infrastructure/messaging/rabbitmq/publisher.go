package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/baechuer/pension-service/internal/application/signup"
	appCtx "github.com/baechuer/pension-service/internal/pkg/context"
)

const (
	DefaultExchange = "pension.events"

	RoutingAccountRegistered = "account.registered"

	// Minimum window to wait for Return / Confirm.
	publishWait = 2 * time.Second
)

type Publisher struct {
	url      string
	exchange string

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

// accountRegisteredMessage is the wire shape of the event.
type accountRegisteredMessage struct {
	AccountID  string    `json:"account_id"`
	ProfileID  string    `json:"profile_id"`
	Email      string    `json:"email"`
	Category   string    `json:"category"`
	RegistryID int64     `json:"registry_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newAccountRegisteredMessage(evt signup.AccountRegisteredEvent) accountRegisteredMessage {
	return accountRegisteredMessage{
		AccountID:  evt.AccountID,
		ProfileID:  evt.ProfileID,
		Email:      evt.Email,
		Category:   evt.Category,
		RegistryID: evt.RegistryID,
		OccurredAt: evt.OccurredAt.UTC(),
	}
}

// ---- signup.EventPublisher ----

func (p *Publisher) PublishAccountRegistered(ctx context.Context, evt signup.AccountRegisteredEvent) error {
	return p.publishJSON(ctx, RoutingAccountRegistered, evt.AccountID, newAccountRegisteredMessage(evt))
}

// ---- internal ----

// newPublishing builds a persistent JSON message. The correlation id is the
// originating request id so consumers can join the event to the signup call.
func newPublishing(ctx context.Context, messageID string, body []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     messageID,
		CorrelationId: appCtx.CorrelationID(ctx, messageID),
		Timestamp:     now.UTC(),
		Body:          body,
	}
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	return p.connect()
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Ensure there is a deadline to avoid blocking forever.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, publishWait)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return err
	}

	// Drain stale confirms / returns so results are not mixed up.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	if err := p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		newPublishing(ctx, messageID, body, time.Now()),
	); err != nil {
		p.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}

	// With mandatory publishing the broker sends basic.return before the ack,
	// so a Return that is ready once the confirm arrives belongs to this message.
	select {
	case ret := <-p.returnCh:
		return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)

	case conf := <-p.confirmCh:
		select {
		case ret := <-p.returnCh:
			return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)
		default:
		}
		if !conf.Ack {
			return fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag)
		}
		return nil

	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publish: key=%s: %w", routingKey, ctx.Err())
	}
}

func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
