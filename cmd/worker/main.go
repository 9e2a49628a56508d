// cmd/worker/main.go
package main

import (
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/unclebandit/mailflow-backend/internal/db"
	"github.com/unclebandit/mailflow-backend/internal/queue"
	"github.com/unclebandit/mailflow-backend/internal/repository"
	"github.com/unclebandit/mailflow-backend/internal/scheduler"
	"github.com/unclebandit/mailflow-backend/internal/service"
	"github.com/unclebandit/mailflow-backend/internal/transport"
)

// The worker consumes mailing send jobs from RabbitMQ and executes
// them. It pairs with a server running QUEUE_DRIVER=amqp: the server
// owns the timers, this process owns the transport calls.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	workerID := uuid.NewString()[:8]
	log.Printf("[worker %s] starting", workerID)

	db.Init()

	mailingRepo := &repository.MailingRepository{DB: db.DB}
	messageRepo := &repository.MessageRepository{DB: db.DB}
	clientRepo := &repository.ClientRepository{DB: db.DB}
	attemptRepo := &repository.AttemptRepository{DB: db.DB}
	jobRepo := &repository.ScheduledJobRepository{DB: db.DB}

	mailingService := &service.MailingService{
		Mailings:    mailingRepo,
		Messages:    messageRepo,
		Clients:     clientRepo,
		Attempts:    attemptRepo,
		Sender:      newSender(),
		SendTimeout: sendTimeout(),
		// Never started here: the worker only needs the job-row
		// removal side of the scheduler when it finishes a
		// scheduled send.
		Scheduler: scheduler.NewScheduler(jobRepo, nil),
	}

	amqpQueue, err := queue.NewAMQPQueue(os.Getenv("AMQP_URL"))
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer amqpQueue.Close()

	queue.StartMailingSendSubscriber(amqpQueue, mailingService)

	log.Printf("[worker %s] running, waiting for messages...", workerID)
	forever := make(chan bool)
	<-forever
}

func newSender() transport.Sender {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		log.Println("⚠️ RESEND_API_KEY not set, outgoing mail will only be logged")
		return transport.LogSender{}
	}
	return transport.NewResendSender(apiKey, os.Getenv("MAIL_FROM"))
}

func sendTimeout() time.Duration {
	raw := os.Getenv("SEND_TIMEOUT")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Println("⚠️ Invalid SEND_TIMEOUT, using default:", err)
		return 0
	}
	return d
}
