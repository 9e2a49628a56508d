package queue

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
)

// TopicMailingSends carries mailing IDs whose send should be executed.
const TopicMailingSends = "mailing_sends"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is an in-process queue with retry, used for
// single-binary deployments where the worker runs inside the server.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %+v, error: %v\n", job.RetryCount, job.MaxRetries, job.Payload, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Exponential backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// DispatchHandler executes the send for one mailing. Implemented by
// the mailing service.
type DispatchHandler interface {
	Dispatch(mailingID int) error
}

// Dispatcher publishes mailing IDs onto a queue. The scheduler fires
// through this so the executing process does not have to be the
// scheduling process.
type Dispatcher struct {
	Queue Queue
}

func (d *Dispatcher) Dispatch(mailingID int) error {
	return d.Queue.Publish(TopicMailingSends, mailingID)
}

// StartMailingSendSubscriber wires the dispatch handler to the queue.
func StartMailingSendSubscriber(q Queue, handler DispatchHandler) {
	err := q.Subscribe(TopicMailingSends, func(payload any) error {
		mailingID, ok := payload.(int)
		if !ok {
			log.Println("⚠️ Invalid payload type, expected int")
			return nil // no retry
		}

		log.Println("📩 Executing queued send for mailing ID:", mailingID)

		if err := handler.Dispatch(mailingID); err != nil {
			// The mailing may legitimately have been deleted between
			// scheduling and firing. Drop the job, don't retry.
			var notFound *appErrors.ErrMailingNotFound
			if errors.As(err, &notFound) {
				log.Println("⚠️ Mailing vanished before send, dropping job:", err)
				return nil
			}
			log.Println("⚠️ Failed to execute send:", err)
			return err // triggers retry in queue
		}

		return nil
	})

	if err != nil {
		log.Println("⚠️ Failed to start subscriber for", TopicMailingSends, ":", err)
	}
}
