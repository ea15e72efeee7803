package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName is the durable queue carrying booking and payment events.
const QueueName = "booking.events"

// Consumer reads events from QueueName and appends one line per event to
// <Dir>/booking.log.
type Consumer struct {
    URL string
    Dir string
}

// Run connects to RabbitMQ, declares the queue and consumes until ctx is
// done.  Broker failures never stop it: it reconnects with a capped
// exponential backoff.  Messages that cannot be handled are rejected
// without requeue so a bad payload cannot loop.
func (c Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Warnf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Warnf("event-consumer: consume loop ended: %v; reconnecting", err)
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

func (c Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Warnf("event-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(d.Body); err != nil {
                log.Errorf("event-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one event and appends its log line.
func (c Consumer) Handle(body []byte) error {
    var ev Event
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.BookingID == 0 {
        return fmt.Errorf("incomplete event: %s", body)
    }
    dir := c.Dir
    if dir == "" {
        dir = "logs"
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders ev as a single human-friendly line.
func FormatLine(ev Event) string {
    at := ev.OccurredAt.UTC().Format(time.RFC3339)
    switch ev.Type {
    case TypeBookingStatusChanged:
        return fmt.Sprintf("[%s] Booking %s -> %s | booking_id=%d | tour_id=%d | tourist_id=%d | guide_id=%d | total=%d cents\n",
            at, ev.From, ev.To, ev.BookingID, ev.TourID, ev.TouristID, ev.GuideID, ev.AmountCents)
    case TypePaymentReconciled:
        return fmt.Sprintf("[%s] Payment %s | booking_id=%d | transaction_id=%s | tourist_id=%d | amount=%d cents\n",
            at, ev.PaymentStatus, ev.BookingID, ev.TransactionID, ev.TouristID, ev.AmountCents)
    }
    return fmt.Sprintf("[%s] %s | booking_id=%d\n", at, ev.Type, ev.BookingID)
}
