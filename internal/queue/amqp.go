package queue

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/streadway/amqp"
)

// sendJob is the wire format on the mailing_sends queue.
type sendJob struct {
	MailingID int `json:"mailing_id"`
}

// AMQPQueue publishes and consumes mailing send jobs over RabbitMQ.
// Used when the API server and the sending worker run as separate
// processes.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Durable queue so pending jobs survive a broker restart.
	if _, err := ch.QueueDeclare(
		TopicMailingSends,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Close() {
	q.ch.Close()
	q.conn.Close()
}

// Publish puts one mailing ID onto the durable queue
func (q *AMQPQueue) Publish(topic string, payload any) error {
	mailingID, ok := payload.(int)
	if !ok {
		return fmt.Errorf("invalid payload type %T, expected int", payload)
	}

	body, err := json.Marshal(sendJob{MailingID: mailingID})
	if err != nil {
		return err
	}

	return q.ch.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Subscribe consumes the queue with manual acks. Handler errors
// requeue the delivery once; a redelivered message that fails again is
// dropped so a poison job cannot loop forever.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			var job sendJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Println("Invalid job:", err)
				d.Ack(false)
				continue
			}

			if err := handler(job.MailingID); err != nil {
				if d.Redelivered {
					log.Println("Job failed after redelivery, dropping:", err)
					d.Ack(false)
				} else {
					d.Nack(false, true) // requeue once
				}
				continue
			}

			d.Ack(false)
		}
	}()

	return nil
}

var _ Queue = (*AMQPQueue)(nil)
