package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"user_service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrBadMessage = errors.New("malformed message")

type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*RabbitMQClient, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RabbitMQClient{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

func (r *RabbitMQClient) SendMessage(ctx context.Context, msg models.Message) error {
	const op = "rabbitmq.SendMessage"

	body, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         msg.Purpose,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// * Consume delivers queued messages to handle until ctx is done or the
// channel closes. Malformed messages are dropped. A failed delivery is
// requeued once; on the second failure it is dropped.
func (r *RabbitMQClient) Consume(ctx context.Context, handle func(context.Context, models.Message) error) error {
	const op = "rabbitmq.Consume"

	if err := r.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := r.channel.ConsumeWithContext(ctx, r.queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}

			msg, err := Decode(d.Body)
			if err != nil {
				_ = d.Nack(false, false)
				continue
			}

			if err := handle(ctx, msg); err != nil {
				_ = d.Nack(false, !d.Redelivered)
				continue
			}

			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() {
	_ = r.channel.Close()
	_ = r.conn.Close()
}

func Encode(msg models.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(body []byte) (models.Message, error) {
	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	if msg.Email == "" || msg.Purpose == "" {
		return models.Message{}, fmt.Errorf("%w: recipient and purpose are required", ErrBadMessage)
	}

	return msg, nil
}
