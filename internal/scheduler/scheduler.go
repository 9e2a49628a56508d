package scheduler

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
	"github.com/unclebandit/mailflow-backend/internal/model"
	"github.com/unclebandit/mailflow-backend/internal/repository"
)

// Dispatcher hands a due mailing to whatever executes the send.
type Dispatcher interface {
	Dispatch(mailingID int) error
}

// Scheduler keeps at most one pending one-shot fire time per mailing.
// Jobs live in the scheduled_jobs table; the in-memory timers are just
// an optimization over polling and are rebuilt from the table on
// Start, so pending sends survive a process restart. Jobs whose fire
// time passed while the process was down fire immediately on reload.
type Scheduler struct {
	Jobs       repository.ScheduledJobRepositoryInterface
	Dispatcher Dispatcher

	mu      sync.Mutex
	timers  map[int]*time.Timer
	started bool
}

func NewScheduler(jobs repository.ScheduledJobRepositoryInterface, dispatcher Dispatcher) *Scheduler {
	return &Scheduler{
		Jobs:       jobs,
		Dispatcher: dispatcher,
		timers:     make(map[int]*time.Timer),
	}
}

// Start reloads pending jobs from the registry and arms their timers.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler already started")
	}

	pending, err := s.Jobs.ListPending()
	if err != nil {
		return fmt.Errorf("failed to reload pending jobs: %w", err)
	}

	for _, job := range pending {
		s.armLocked(job.JobID, job.MailingID, job.FireAt)
	}

	s.started = true
	log.Printf("Scheduler started, %d pending job(s) re-armed", len(pending))
	return nil
}

// Stop disarms all timers. The durable rows stay, so the jobs fire on
// the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for mailingID, t := range s.timers {
		t.Stop()
		delete(s.timers, mailingID)
	}
	s.started = false
	log.Println("Scheduler stopped")
}

// Schedule registers a durable job and arms its timer. A second call
// for the same mailing replaces the previous job; there is never more
// than one pending fire per mailing.
func (s *Scheduler) Schedule(jobID string, mailingID int, fireAt time.Time) error {
	// timestamptz stores microseconds. Truncate before persisting and
	// arming so the ownership check in fire compares equal against the
	// re-read row even when the caller passed nanosecond precision.
	fireAt = fireAt.Truncate(time.Microsecond)

	if err := s.Jobs.Upsert(&model.ScheduledJob{
		JobID:     jobID,
		MailingID: mailingID,
		FireAt:    fireAt,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[mailingID]; ok {
		t.Stop()
	}
	s.armLocked(jobID, mailingID, fireAt)
	return nil
}

// Remove cancels a pending job: timer first (best effort), then the
// durable row. Safe to call when nothing is pending.
func (s *Scheduler) Remove(mailingID int) error {
	s.mu.Lock()
	if t, ok := s.timers[mailingID]; ok {
		t.Stop()
		delete(s.timers, mailingID)
	}
	s.mu.Unlock()

	return s.Jobs.Remove(mailingID)
}

// armLocked must be called with s.mu held.
func (s *Scheduler) armLocked(jobID string, mailingID int, fireAt time.Time) {
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	s.timers[mailingID] = time.AfterFunc(delay, func() {
		s.fire(jobID, mailingID, fireAt)
	})
}

// fire runs in the timer goroutine. The durable row is the source of
// truth: a cancel or reschedule that won the race against this timer
// has already removed or replaced the row, in which case the fire is
// suppressed even though Timer.Stop came too late.
func (s *Scheduler) fire(jobID string, mailingID int, fireAt time.Time) {
	s.mu.Lock()
	delete(s.timers, mailingID)
	s.mu.Unlock()

	job, err := s.Jobs.GetByMailing(mailingID)
	if err != nil {
		log.Printf("Failed to check job for mailing %d before firing: %v", mailingID, err)
		return
	}
	if job == nil || job.JobID != jobID || !job.FireAt.Equal(fireAt) {
		// Cancelled or rescheduled, this timer no longer owns the job.
		return
	}

	if err := s.Dispatcher.Dispatch(mailingID); err != nil {
		var notFound *appErrors.ErrMailingNotFound
		if errors.As(err, &notFound) {
			log.Printf("Mailing %d deleted before its scheduled send: %v", mailingID, err)
		} else {
			log.Printf("Failed to dispatch scheduled send for mailing %d: %v", mailingID, err)
		}
	}

	// The job is consumed either way: one registration, one fire.
	if err := s.Jobs.Remove(mailingID); err != nil {
		log.Printf("Failed to remove fired job for mailing %d: %v", mailingID, err)
	}
}
