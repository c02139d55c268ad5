package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"social-chat/internal/observability"
)

// Broker topology. Both pipeline queues dead-letter into a dedicated queue
// for operator inspection; rejected messages are never requeued.
const (
	Exchange         = "chat.exchange"
	InputQueue       = "chat.input.queue"
	OutputQueue      = "chat.output.queue"
	InputRoutingKey  = "chat.input"
	OutputRoutingKey = "chat.output"

	DeadLetterExchange   = "chat.dlx.exchange"
	DeadLetterQueue      = "chat.dlq.queue"
	DeadLetterRoutingKey = "chat.dlq"
)

// Handler processes one consumed payload. A non-nil error rejects the
// delivery without requeue, routing it to the dead-letter queue.
type Handler func(ctx context.Context, body []byte) error

// Broker wraps an AMQP connection with the chat exchange topology declared.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker and declares the exchange, queues, bindings
// and the dead-letter pair.
func Dial(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}

	log.Printf("rabbitmq connected exchange=%s", Exchange)
	return &Broker{conn: conn, ch: ch}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	deadLetterArgs := amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": DeadLetterRoutingKey,
	}
	if _, err := ch.QueueDeclare(InputQueue, true, false, false, false, deadLetterArgs); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(OutputQueue, true, false, false, false, deadLetterArgs); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}

	if err := ch.QueueBind(InputQueue, InputRoutingKey, Exchange, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(OutputQueue, OutputRoutingKey, Exchange, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(DeadLetterQueue, DeadLetterRoutingKey, DeadLetterExchange, false, nil)
}

// Publish sends a persistent JSON message to the chat exchange.
func (b *Broker) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = b.ch.PublishWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		observability.IncAMQPPublishError(routingKey)
		log.Printf("rabbitmq publish failed routing_key=%s: %v", routingKey, err)
	}
	return err
}

// Consume runs a worker group over the queue until ctx is cancelled.
// Handler failures reject the delivery without requeue; the queue's
// dead-letter binding takes it from there.
func (b *Broker) Consume(ctx context.Context, queue string, workers int, handler Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer channel: %w", err)
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("consumer qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go func() {
		<-ctx.Done()
		_ = ch.Close()
	}()

	tracer := otel.Tracer("rabbitmq")
	for i := 0; i < workers; i++ {
		go func() {
			for delivery := range deliveries {
				deliveryCtx, span := tracer.Start(ctx, "consume "+queue)
				if err := handler(deliveryCtx, delivery.Body); err != nil {
					span.RecordError(err)
					span.End()
					log.Printf("consumer handler failed queue=%s: %v", queue, err)
					observability.IncConsumed(queue, "dead_letter")
					_ = delivery.Nack(false, false)
					continue
				}
				span.End()
				observability.IncConsumed(queue, "ok")
				_ = delivery.Ack(false)
			}
		}()
	}

	log.Printf("rabbitmq consuming queue=%s workers=%d", queue, workers)
	return nil
}

// Close tears down the channel and connection.
func (b *Broker) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
