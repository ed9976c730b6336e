package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"discord-digest-bot/internal/domain"
)

// AMQPDigestQueue implements the job queue on a durable AMQP queue with
// manual acknowledgements.
type AMQPDigestQueue struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// NewAMQPDigestQueue dials the broker and declares the queue.
func NewAMQPDigestQueue(amqpURL, queue string) (*AMQPDigestQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	// One unacked job per worker keeps long digest builds from starving
	// other consumers.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &AMQPDigestQueue{conn: conn, channel: channel, queue: queue}, nil
}

// Enqueue publishes a job as a persistent message.
func (q *AMQPDigestQueue) Enqueue(ctx context.Context, job domain.DigestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive blocks until a job arrives. The ack settles the delivery: failure
// requeues it on the broker.
func (q *AMQPDigestQueue) Receive(ctx context.Context) (domain.DigestJob, domain.DigestAckFunc, error) {
	if q.deliveries == nil {
		deliveries, err := q.channel.Consume(q.queue, "", false, false, false, false, nil)
		if err != nil {
			return domain.DigestJob{}, nil, fmt.Errorf("consume: %w", err)
		}
		q.deliveries = deliveries
	}

	for {
		select {
		case <-ctx.Done():
			return domain.DigestJob{}, nil, ctx.Err()
		case delivery, ok := <-q.deliveries:
			if !ok {
				return domain.DigestJob{}, nil, errors.New("amqp queue: channel closed")
			}
			var job domain.DigestJob
			if err := json.Unmarshal(delivery.Body, &job); err != nil {
				// Poison message: drop it, or it blocks the queue forever.
				_ = delivery.Nack(false, false)
				return domain.DigestJob{}, nil, fmt.Errorf("decode job: %w", err)
			}
			ack := func(success bool) error {
				if success {
					return delivery.Ack(false)
				}
				return delivery.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}

// Close releases the channel and connection.
func (q *AMQPDigestQueue) Close() error {
	if err := q.channel.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
