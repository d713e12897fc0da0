// Package queue_publisher provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned to allow callers to ignore failures without
// interrupting the main request flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "time"

    "github.com/charmbracelet/log"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/brt-fare-chart/internal/fares"
    q "github.com/iliyamo/brt-fare-chart/internal/queue"
)

// PublishFaresLoaded publishes a FaresLoadedEvent to queueName on the broker
// at url.  The queue is declared durable and messages are marked persistent.
func PublishFaresLoaded(ctx context.Context, url, queueName string, event q.FaresLoadedEvent) error {
    conn, err := amqp.Dial(url)
    if err != nil {
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        queueName, // name
        true,      // durable
        false,     // autoDelete
        false,     // exclusive
        false,     // noWait
        nil,       // args
    ); err != nil {
        return err
    }

    body, err := json.Marshal(event)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    return ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        pub,
    )
}

// NewEvent describes a freshly loaded matrix.
func NewEvent(workbook string, strict bool, m *fares.Matrix, at time.Time) q.FaresLoadedEvent {
    return q.FaresLoadedEvent{
        Workbook:   workbook,
        Stops:      m.Len(),
        RaggedRows: m.RaggedRows(),
        Strict:     strict,
        LoadedAt:   at.UTC().Format(time.RFC3339),
    }
}

// publishFunc matches PublishFaresLoaded; tests swap it out.
type publishFunc func(ctx context.Context, url, queueName string, event q.FaresLoadedEvent) error

// LoadHook returns a fares.Store load hook that publishes the loaded event in
// the background.  A failed publish is logged and never fails the load.
func LoadHook(url, queueName, workbook string, strict bool, logger *log.Logger) func(context.Context, *fares.Matrix) {
    return loadHook(PublishFaresLoaded, url, queueName, workbook, strict, logger)
}

func loadHook(publish publishFunc, url, queueName, workbook string, strict bool, logger *log.Logger) func(context.Context, *fares.Matrix) {
    return func(ctx context.Context, m *fares.Matrix) {
        ev := NewEvent(workbook, strict, m, time.Now())
        go func() {
            ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
            defer cancel()
            if err := publish(ctx, url, queueName, ev); err != nil {
                logger.Warn("rabbitmq: publish fares.loaded failed", "err", err)
                return
            }
            logger.Debug("rabbitmq: published fares.loaded", "queue", queueName, "stops", ev.Stops)
        }()
    }
}
