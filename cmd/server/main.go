// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/unclebandit/mailflow-backend/internal/controller"
	"github.com/unclebandit/mailflow-backend/internal/db"
	"github.com/unclebandit/mailflow-backend/internal/queue"
	"github.com/unclebandit/mailflow-backend/internal/repository"
	"github.com/unclebandit/mailflow-backend/internal/scheduler"
	"github.com/unclebandit/mailflow-backend/internal/service"
	"github.com/unclebandit/mailflow-backend/internal/transport"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	// Init DB
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
	}

	// Dispatch queue: in-memory by default, RabbitMQ when the sends
	// are executed by a separate worker process.
	var q queue.Queue
	if os.Getenv("QUEUE_DRIVER") == "amqp" {
		amqpQueue, err := queue.NewAMQPQueue(os.Getenv("AMQP_URL"))
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ:", err)
		}
		defer amqpQueue.Close()
		q = amqpQueue
	} else {
		memQueue := queue.NewInMemoryQueue()
		queue.StartMailingSendSubscriber(memQueue, mailingService)
		q = memQueue
	}

	sched := scheduler.NewScheduler(jobRepo, &queue.Dispatcher{Queue: q})
	mailingService.Scheduler = sched
	if err := sched.Start(); err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}
	defer sched.Stop()

	mailingController := &controller.MailingController{
		MailingService: mailingService,
	}
	catalogController := &controller.CatalogController{
		Messages:       messageRepo,
		Clients:        clientRepo,
		MailingService: mailingService,
	}

	r := chi.NewRouter()

	// Mailing routes
	r.Post("/mailings", mailingController.CreateMailing)
	r.Get("/mailings", mailingController.ListMailings)
	r.Get("/mailings/{id}", mailingController.GetMailing)
	r.Post("/mailings/{id}/send", mailingController.SendMailing)
	r.Post("/mailings/{id}/schedule", mailingController.ScheduleMailing)
	r.Post("/mailings/{id}/cancel", mailingController.CancelMailing)
	r.Post("/mailings/{id}/disable", mailingController.DisableMailing)
	r.Delete("/mailings/{id}", mailingController.DeleteMailing)
	r.Get("/statistics", mailingController.GetStatistics)

	// Message and client routes
	r.Post("/messages", catalogController.CreateMessage)
	r.Get("/messages", catalogController.ListMessages)
	r.Get("/messages/{id}", catalogController.GetMessage)
	r.Delete("/messages/{id}", catalogController.DeleteMessage)
	r.Post("/clients", catalogController.CreateClient)
	r.Get("/clients", catalogController.ListClients)
	r.Get("/clients/{id}", catalogController.GetClient)
	r.Delete("/clients/{id}", catalogController.DeleteClient)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("🚀 Server running on :" + port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}

// newSender picks the outbound transport: Resend when an API key is
// configured, otherwise a sender that only logs.
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
		return 0 // service default
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Println("⚠️ Invalid SEND_TIMEOUT, using default:", err)
		return 0
	}
	return d
}
