package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"cashflow/internal/log"
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
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// permanentError marks a handler failure that must not be redelivered.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the consumer drops the delivery instead of
// requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Client publishes report requests and results over a direct exchange and
// consumes them with manual acks. Requests and results use separate queues.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	resultQueue  string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
	reconnecting atomic.Bool
}

func NewClient(url, exchangeName, queueName, resultQueue string, logger *log.Logger) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		resultQueue:  resultQueue,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(channel, c.exchangeName, c.queueName, c.resultQueue); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn, c.channel = conn, channel
	return nil
}

// setup declares the durable exchange and binds each queue under its own
// name as routing key.
func setup(ch *amqp091.Channel, exchange string, queues ...string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range queues {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// reconnect replaces a closed connection, retrying with backoff until ctx ends.
func (c *Client) reconnect(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		c.closeConn()
		err := c.connect()
		if err == nil {
			c.logger.InfoContext(ctx, "Reconnected to AMQP", "attempt", attempt+1)
			return nil
		}
		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "AMQP reconnect failed", log.FieldError, err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// PublishReportRequest queues a report computation.
func (c *Client) PublishReportRequest(ctx context.Context, msg *ReportRequestMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.queueName, msg.ID, "", body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published report request",
		log.FieldReportID, msg.ID, log.FieldView, msg.View, log.FieldOperation, log.OpPublish)
	return nil
}

// PublishReportReady announces a finished report on the result queue.
func (c *Client) PublishReportReady(ctx context.Context, msg *ReportReadyMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.resultQueue, msg.ID, msg.RequestID, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published report result",
		log.FieldReportID, msg.RequestID, log.FieldOperation, log.OpPublish)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey, messageID, correlationID string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		c.recordFailure()
		return fmt.Errorf("publish to %s: channel not open", routingKey)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := ch.PublishWithContext(ctx, c.exchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     messageID,
		CorrelationId: correlationID,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) && c.reconnecting.CompareAndSwap(false, true) {
			go func() {
				defer c.reconnecting.Store(false)
				c.reconnect(context.WithoutCancel(ctx))
			}()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeReportRequests hands each request to handler until ctx ends. A
// nil error acks, a Permanent error drops, anything else requeues.
func (c *Client) ConsumeReportRequests(ctx context.Context, handler func(context.Context, *ReportRequestMessage) error) error {
	return c.consume(ctx, c.queueName, func(d amqp091.Delivery) error {
		msg, err := requestFromDelivery(d)
		if err != nil {
			return err
		}
		return handler(ctx, msg)
	})
}

func requestFromDelivery(d amqp091.Delivery) (*ReportRequestMessage, error) {
	msg, err := ReportRequestMessageFromJSON(d.Body)
	if err != nil {
		return nil, Permanent(fmt.Errorf("unmarshal request: %w", err))
	}
	msg.Redelivered = d.Redelivered
	return msg, nil
}

// ConsumeReportReady hands each result message to handler until ctx ends.
func (c *Client) ConsumeReportReady(ctx context.Context, handler func(context.Context, *ReportReadyMessage) error) error {
	return c.consume(ctx, c.resultQueue, func(d amqp091.Delivery) error {
		msg, err := ReportReadyMessageFromJSON(d.Body)
		if err != nil {
			return Permanent(fmt.Errorf("unmarshal result: %w", err))
		}
		return handler(ctx, msg)
	})
}

func (c *Client) consume(ctx context.Context, queue string, handle func(amqp091.Delivery) error) error {
	for {
		c.mu.Lock()
		ch := c.channel
		c.mu.Unlock()

		var msgs <-chan amqp091.Delivery
		var err error
		if ch == nil {
			err = amqp091.ErrClosed
		} else {
			msgs, err = ch.Consume(queue, "", false, false, false, false, nil)
		}
		if err != nil {
			if !isConnectionError(err) {
				return fmt.Errorf("start consuming: %w", err)
			}
			if err := c.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.InfoContext(ctx, "Started consuming", "queue", queue)
		if err := c.drain(ctx, msgs, handle); err != nil {
			return err
		}

		c.logger.WarnContext(ctx, "Delivery channel closed, reconnecting", "queue", queue)
		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}
}

// drain processes deliveries until ctx ends (returning its error) or the
// channel closes (returning nil).
func (c *Client) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handle func(amqp091.Delivery) error) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			err := handle(d)
			switch {
			case err == nil:
				d.Ack(false)
			case IsPermanent(err):
				c.logger.ErrorContext(ctx, "Dropping message", log.FieldError, err, "message_id", d.MessageId)
				d.Nack(false, false)
			default:
				c.logger.ErrorContext(ctx, "Failed to handle message, requeueing", log.FieldError, err, "message_id", d.MessageId)
				d.Nack(false, true)
			}
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	switch atomic.LoadInt32(&c.state) {
	case StateOpen:
		c.mu.Lock()
		elapsed := time.Since(c.lastFailure)
		c.mu.Unlock()
		if elapsed > openTimeout {
			atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff doubles from one second, capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Duration(1<<attempt)*time.Second, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "closed network"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.closeConn()
	return nil
}
