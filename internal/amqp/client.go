package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	rlog "rapport/internal/log"
	"rapport/internal/report"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// errUndecodable marks a delivery whose body can't be decoded. It is
// dropped instead of requeued.
var errUndecodable = errors.New("undecodable message")

// Config names the broker objects. ReportQueue defaults to Queue + ".reports".
type Config struct {
	URL         string
	Exchange    string
	Queue       string
	ReportQueue string
	Logger      *slog.Logger
}

// Client publishes and consumes over one connection, reconnecting lazily.
// Publishing is guarded by a circuit breaker so a dead broker fails fast.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	reportQueue  string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

var _ report.Publisher = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("missing AMQP url")
	}
	c := newClient(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.channelLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// newClient applies the defaults without dialing.
func newClient(cfg Config) *Client {
	if cfg.ReportQueue == "" {
		cfg.ReportQueue = cfg.Queue + ".reports"
	}
	return &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		queueName:    cfg.Queue,
		reportQueue:  cfg.ReportQueue,
		logger:       rlog.OrDefault(cfg.Logger, rlog.ComponentAMQP),
	}
}

// channelLocked returns an open channel, dialing when needed. c.mu must be held.
func (c *Client) channelLocked() (*amqp091.Channel, error) {
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp091.Dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("dial AMQP: %w", err)
		}
		c.conn = conn
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(ch); err != nil {
		ch.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	c.channel = ch
	return ch, nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	// Declare exchange
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	// Routing key equals queue name on a direct exchange
	for _, q := range []string{c.queueName, c.reportQueue} {
		if _, err := ch.QueueDeclare(
			q,     // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// PublishLedgerSync announces a stored ledger row waiting for sync
func (c *Client) PublishLedgerSync(ctx context.Context, id int64) error {
	body, err := NewLedgerSyncMessage(id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, body); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Published ledger sync message",
		rlog.FieldRowID, id,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// PublishReportFinalized implements report.Publisher
func (c *Client) PublishReportFinalized(ctx context.Context, e report.Event) error {
	msg := &ReportFinalizedMessage{Report: e, Timestamp: time.Now()}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.reportQueue, body); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Published report finalized message",
		rlog.FieldDocumentNumber, e.DocumentNumber,
		"queue", c.reportQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.channelLocked()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		if isConnectionError(err) {
			c.resetLocked()
		}
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeLedgerSync consumes sync messages until ctx is done, reconnecting
// with exponential backoff when the broker goes away. A handler error
// requeues the message; an undecodable message is dropped.
func (c *Client) ConsumeLedgerSync(ctx context.Context, handler func(context.Context, *LedgerSyncMessage) error) error {
	return c.consume(ctx, c.queueName, ledgerSyncBody(handler))
}

// ConsumeReportFinalized consumes finalized-report events the same way.
func (c *Client) ConsumeReportFinalized(ctx context.Context, handler func(context.Context, *ReportFinalizedMessage) error) error {
	return c.consume(ctx, c.reportQueue, reportFinalizedBody(handler))
}

func ledgerSyncBody(handler func(context.Context, *LedgerSyncMessage) error) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		msg, err := LedgerSyncMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errUndecodable, err)
		}
		return handler(ctx, msg)
	}
}

func reportFinalizedBody(handler func(context.Context, *ReportFinalizedMessage) error) func(context.Context, []byte) error {
	return func(ctx context.Context, body []byte) error {
		msg, err := ReportFinalizedMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errUndecodable, err)
		}
		return handler(ctx, msg)
	}
}

func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, []byte) error) error {
	attempt := 0
	for {
		delivered, err := c.consumeOnce(ctx, queue, handle)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		}
		if delivered {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "Consumer interrupted, reconnecting",
			rlog.FieldError, err,
			"queue", queue,
			"retry_in", wait)

		c.mu.Lock()
		c.resetLocked()
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handle func(context.Context, []byte) error) (bool, error) {
	c.mu.Lock()
	ch, err := c.channelLocked()
	if err == nil {
		err = ch.Qos(1, 0, false)
	}
	c.mu.Unlock()
	if err != nil {
		return false, err
	}

	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming %s: %w", queue, err)
	}

	c.logger.InfoContext(ctx, "Started consuming", "queue", queue)

	delivered := false
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return delivered, errors.New("message channel closed")
			}
			delivered = true
			c.settle(ctx, d, handle)
		}
	}
}

// settle runs handle for one delivery, then acks it, requeues it after a
// handler error or drops it when the body can't be decoded. Handlers must
// tolerate redelivery: a message is redelivered whenever the ack is lost.
func (c *Client) settle(ctx context.Context, d amqp091.Delivery, handle func(context.Context, []byte) error) {
	err := handle(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.log().WarnContext(ctx, "Failed to ack message", rlog.FieldError, ackErr, "message_id", d.MessageId)
			return
		}
		c.log().DebugContext(ctx, "Processed message",
			"message_id", d.MessageId,
			"redelivered", d.Redelivered)
	case errors.Is(err, errUndecodable):
		c.log().ErrorContext(ctx, "Dropping undecodable message",
			rlog.FieldError, err,
			"message_id", d.MessageId)
		_ = d.Nack(false, false)
	default:
		c.log().ErrorContext(ctx, "Failed to handle message, requeueing",
			rlog.FieldError, err,
			"message_id", d.MessageId,
			"redelivered", d.Redelivered)
		_ = d.Nack(false, true)
	}
}

// resetLocked drops the channel and connection. c.mu must be held.
func (c *Client) resetLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		last := c.lastFailure
		c.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

// recordFailure is called with c.mu held or from tests.
func (c *Client) recordFailure() {
	c.lastFailure = time.Now()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.log().Warn("AMQP circuit breaker opened", "failures", atomic.LoadInt64(&c.failureCount))
		}
	}
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "eof", "broken pipe", "closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
		c.channel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			errs = append(errs, err)
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}
