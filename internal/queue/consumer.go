package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPermanent marks a handler failure that must not be redelivered.
var ErrPermanent = errors.New("permanent failure")

// Handler processes one delivery.  Returning nil acks the message,
// an error wrapping ErrPermanent rejects it, any other error requeues it.
type Handler func(ctx context.Context, d amqp.Delivery) error

// Binding describes the queue a consumer reads from.
type Binding struct {
	Exchange string
	Queue    string
	Keys     []string
}

// Consume connects to the broker, binds the queue and feeds deliveries to
// h until ctx is cancelled.  Lost connections are redialled with
// exponential backoff so the server keeps operating while the broker is
// away.
func Consume(ctx context.Context, url string, b Binding, h Handler, log *zap.Logger) error {
	log = log.With(zap.String("queue", b.Queue))
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, b, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, b Binding, h Handler, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(b.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range b.Keys {
		if err := ch.QueueBind(q.Name, key, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := h(ctx, d); err != nil {
			requeue := !errors.Is(err, ErrPermanent)
			log.Error("handle message failed",
				zap.String("routing_key", d.RoutingKey),
				zap.Bool("requeue", requeue),
				zap.Error(err))
			_ = d.Nack(false, requeue)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// NotificationSink stands in for email and push delivery: it appends
// one line per notification event to a log file.
type NotificationSink struct {
	dir string
	mu  sync.Mutex
}

// NewNotificationSink writes to dir/notifications.log.
func NewNotificationSink(dir string) *NotificationSink {
	return &NotificationSink{dir: dir}
}

// Handle is a Handler for the notifications queue.
func (s *NotificationSink) Handle(_ context.Context, d amqp.Delivery) error {
	line, err := FormatNotification(d.RoutingKey, d.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return s.append(line)
}

func (s *NotificationSink) append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Ensure logs directory exists
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatNotification renders an event body as a single human-friendly
// line.
func FormatNotification(key string, body []byte) (string, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	switch key {
	case KeyBookingConfirmed:
		var ev BookingConfirmed
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Booking confirmed | booking_id=%s | to=%q | trainer=%q | service=%q | at=%s | duration=%dm\n",
			now, ev.BookingID, ev.ClientEmail, ev.TrainerName, ev.ServiceName,
			ev.ScheduledAt.UTC().Format(time.RFC3339), ev.DurationMinutes), nil
	case KeyBookingCancelled:
		var ev BookingCancelled
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Booking cancelled | booking_id=%s | to=%q | at=%s | reason=%q | refunded=%t\n",
			now, ev.BookingID, ev.ClientEmail, ev.ScheduledAt.UTC().Format(time.RFC3339), ev.Reason, ev.Refunded), nil
	case KeyReminderDue:
		var ev ReminderDue
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Reminder | booking_id=%s | to=%q | trainer=%q | at=%s | in=%dh\n",
			now, ev.BookingID, ev.ClientEmail, ev.TrainerName, ev.ScheduledAt.UTC().Format(time.RFC3339), ev.HoursBefore), nil
	case KeyLowCredits:
		var ev LowCredits
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Low credits | client_id=%s | remaining=%d\n", now, ev.ClientID, ev.Remaining), nil
	}
	return "", fmt.Errorf("unknown routing key %q", key)
}

// PaymentProcessor applies inbound payment events.
type PaymentProcessor interface {
	HandlePayment(ctx context.Context, ev PaymentEvent) error
}

// PaymentHandler decodes payment deliveries and forwards them to p.
// Malformed payloads are rejected permanently; processing errors are
// requeued.
func PaymentHandler(p PaymentProcessor) Handler {
	return func(ctx context.Context, d amqp.Delivery) error {
		var ev PaymentEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			return fmt.Errorf("%w: unmarshal: %v", ErrPermanent, err)
		}
		if ev.Kind == "" {
			ev.Kind = d.RoutingKey
		}
		if ev.ID == "" || ev.BookingID == "" {
			return fmt.Errorf("%w: payment event without id or booking_id", ErrPermanent)
		}
		return p.HandlePayment(ctx, ev)
	}
}
