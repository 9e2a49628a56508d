// internal/service/mailing_service.go
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
    "github.com/unclebandit/mailflow-backend/internal/model"
    "github.com/unclebandit/mailflow-backend/internal/repository"
    "github.com/unclebandit/mailflow-backend/internal/transport"
)

// SuccessResponse is recorded on an attempt when the transport
// accepted the batch.
const SuccessResponse = "Mailing successfully handed over to the SMTP server"

const defaultSendTimeout = 30 * time.Second

// JobScheduler is the slice of the scheduler the service needs:
// register a one-shot job, remove a pending one.
type JobScheduler interface {
    Schedule(jobID string, mailingID int, fireAt time.Time) error
    Remove(mailingID int) error
}

// JobID derives the deterministic scheduler job ID for a mailing, so
// rescheduling naturally replaces the previous job.
func JobID(mailingID int) string {
    return fmt.Sprintf("mailing_once_%d", mailingID)
}

type MailingService struct {
    Mailings  repository.MailingRepositoryInterface
    Messages  repository.MessageRepositoryInterface
    Clients   repository.ClientRepositoryInterface
    Attempts  repository.AttemptRepositoryInterface
    Sender    transport.Sender
    Scheduler JobScheduler

    // SendTimeout bounds one transport call. Zero means the default.
    SendTimeout time.Duration

    locks mailingLocks
}

// SendNow performs one delivery attempt for the mailing and records
// the outcome. A transport failure is a recorded attempt, not an
// error: the returned attempt carries the failure detail and err is
// nil. Errors are reserved for a missing or disabled mailing and for
// persistence problems.
func (s *MailingService) SendNow(mailingID int) (*model.MailingAttempt, error) {
    unlock := s.locks.lock(mailingID)
    defer unlock()
    return s.sendLocked(mailingID)
}

// Dispatch adapts SendNow for queue subscribers and the scheduler.
func (s *MailingService) Dispatch(mailingID int) error {
    _, err := s.SendNow(mailingID)
    return err
}

func (s *MailingService) sendLocked(mailingID int) (*model.MailingAttempt, error) {
    m, err := s.Mailings.GetByID(mailingID)
    if err != nil {
        return nil, err
    }
    if !m.IsActive {
        return nil, appErrors.NewMailingInactive(mailingID)
    }

    // First-send marker, set once and never touched again.
    if m.StartDatetime == nil {
        now := time.Now()
        m.StartDatetime = &now
    }

    // Mark the mailing as launched before calling the transport so a
    // slow send is already visible as in flight to readers.
    if m.Status != model.StatusLaunched {
        m.Status = model.NextLaunchStatus(m.Status)
    }
    if err := s.Mailings.Update(m); err != nil {
        return nil, err
    }

    msg, err := s.Messages.GetByID(m.MessageID)
    if err != nil {
        return nil, err
    }
    recipients, err := s.Mailings.RecipientEmails(m.ID)
    if err != nil {
        return nil, err
    }

    timeout := s.SendTimeout
    if timeout <= 0 {
        timeout = defaultSendTimeout
    }
    ctx, cancel := context.WithTimeout(context.Background(), timeout)
    defer cancel()

    // One transport call, all recipients in a single batch.
    attempt := &model.MailingAttempt{MailingID: m.ID}
    if sendErr := s.Sender.Send(ctx, msg.Subject, msg.Body, recipients); sendErr != nil {
        attempt.Status = model.AttemptFailure
        attempt.ServerResponse = sendErr.Error()
    } else {
        attempt.Status = model.AttemptSuccess
        attempt.ServerResponse = SuccessResponse
    }

    if err := s.Attempts.Create(attempt); err != nil {
        return nil, err
    }

    // A scheduled fire leaves its job behind; cancelling it here
    // resolves the status through the reconcile rule. A manual send
    // completes through the launch toggle instead.
    if m.ScheduledJobID != nil {
        if err := s.cancelLocked(m); err != nil {
            return attempt, err
        }
    } else {
        m.Status = model.NextLaunchStatus(m.Status)
    }

    end := time.Now()
    m.EndDatetime = &end
    if err := s.Mailings.Update(m); err != nil {
        return attempt, err
    }

    return attempt, nil
}

// ScheduleOnce registers a one-shot send at fireAt and optimistically
// marks the mailing as launched so list views show it as in flight.
func (s *MailingService) ScheduleOnce(mailingID int, fireAt time.Time) (string, error) {
    if !fireAt.After(time.Now()) {
        return "", appErrors.NewInvalidSchedule(fireAt)
    }

    unlock := s.locks.lock(mailingID)
    defer unlock()

    m, err := s.Mailings.GetByID(mailingID)
    if err != nil {
        return "", err
    }
    if !m.IsActive {
        return "", appErrors.NewMailingInactive(mailingID)
    }

    jobID := JobID(mailingID)
    if err := s.Scheduler.Schedule(jobID, mailingID, fireAt); err != nil {
        return "", err
    }

    m.Status = model.StatusLaunched
    m.ScheduledJobID = &jobID
    if err := s.Mailings.Update(m); err != nil {
        return "", err
    }

    return jobID, nil
}

// Cancel removes the mailing's pending scheduled send, if any, and
// reconciles its status. No-op when nothing is pending.
func (s *MailingService) Cancel(mailingID int) error {
    unlock := s.locks.lock(mailingID)
    defer unlock()

    m, err := s.Mailings.GetByID(mailingID)
    if err != nil {
        return err
    }
    if m.ScheduledJobID == nil {
        return nil
    }

    if err := s.cancelLocked(m); err != nil {
        return err
    }
    return s.Mailings.Update(m)
}

// cancelLocked clears the scheduled job and reconciles the status.
// Timer removal is best effort: the persisted mailing record is
// authoritative, a failure to reach the scheduler is logged and
// absorbed. Caller holds the mailing's lock and persists m.
func (s *MailingService) cancelLocked(m *model.Mailing) error {
    if m.ScheduledJobID != nil {
        if err := s.Scheduler.Remove(m.ID); err != nil {
            log.Printf("Failed to remove scheduled job for mailing %d: %v", m.ID, err)
        }
        m.ScheduledJobID = nil
    }

    count, err := s.Attempts.CountByMailing(m.ID)
    if err != nil {
        // The job is already gone; persist the cleared id so the
        // mailing does not keep pointing at a removed job.
        if updateErr := s.Mailings.Update(m); updateErr != nil {
            log.Printf("Failed to persist cancel for mailing %d: %v", m.ID, updateErr)
        }
        return err
    }
    m.Status = model.ReconcileStatus(count > 0)
    return nil
}

// Disable turns the mailing off for good: any pending job is
// cancelled and the mailing can never be sent or rescheduled again.
func (s *MailingService) Disable(mailingID int) error {
    unlock := s.locks.lock(mailingID)
    defer unlock()

    m, err := s.Mailings.GetByID(mailingID)
    if err != nil {
        return err
    }
    if !m.IsActive {
        return nil
    }

    if err := s.cancelLocked(m); err != nil {
        return err
    }
    m.IsActive = false
    return s.Mailings.Update(m)
}

// Delete cancels any pending job and removes the mailing with its
// attempts. The message and clients it references stay.
func (s *MailingService) Delete(mailingID int) error {
    unlock := s.locks.lock(mailingID)
    defer unlock()

    m, err := s.Mailings.GetByID(mailingID)
    if err != nil {
        return err
    }
    if m.ScheduledJobID != nil {
        if err := s.Scheduler.Remove(m.ID); err != nil {
            log.Printf("Failed to remove scheduled job for mailing %d: %v", m.ID, err)
        }
    }
    return s.Mailings.Delete(mailingID)
}

// DeleteClient removes a client. Mailings for which the client was the
// only remaining recipient go with it: a mailing without recipients
// has nothing left to send.
func (s *MailingService) DeleteClient(clientID int) error {
    orphaned, err := s.Mailings.SoleRecipientMailings(clientID)
    if err != nil {
        return err
    }

    for _, mailingID := range orphaned {
        if err := s.Delete(mailingID); err != nil {
            var notFound *appErrors.ErrMailingNotFound
            if errors.As(err, &notFound) {
                continue
            }
            return err
        }
    }

    return s.Clients.Delete(clientID)
}
