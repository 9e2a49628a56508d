package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
	"github.com/unclebandit/mailflow-backend/internal/model"
	"github.com/unclebandit/mailflow-backend/internal/service"
)

// Mock repositories backed by in-memory maps

type mockMailingRepo struct {
	mu            sync.Mutex
	mailings      map[int]*model.Mailing
	emails        map[int][]string
	soleRecipient map[int][]int
}

func (m *mockMailingRepo) Create(mail *model.Mailing, clientIDs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mail.ID = len(m.mailings) + 1
	cp := *mail
	m.mailings[mail.ID] = &cp
	return nil
}

func (m *mockMailingRepo) GetByID(id int) (*model.Mailing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mail, ok := m.mailings[id]
	if !ok {
		return nil, appErrors.NewMailingNotFound(id)
	}
	cp := *mail
	return &cp, nil
}

func (m *mockMailingRepo) Update(mail *model.Mailing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mailings[mail.ID]; !ok {
		return appErrors.NewMailingNotFound(mail.ID)
	}
	cp := *mail
	m.mailings[mail.ID] = &cp
	return nil
}

func (m *mockMailingRepo) UpdateStatus(id int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mail, ok := m.mailings[id]; ok {
		mail.Status = status
	}
	return nil
}

func (m *mockMailingRepo) ListMailings(offset, limit int, status string) ([]*model.Mailing, int, error) {
	return nil, 0, nil
}

func (m *mockMailingRepo) RecipientEmails(id int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emails[id], nil
}

func (m *mockMailingRepo) SoleRecipientMailings(clientID int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.soleRecipient[clientID], nil
}

func (m *mockMailingRepo) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mailings[id]; !ok {
		return appErrors.NewMailingNotFound(id)
	}
	delete(m.mailings, id)
	return nil
}

func (m *mockMailingRepo) CountMailings() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, mail := range m.mailings {
		if mail.Status == model.StatusLaunched {
			active++
		}
	}
	return len(m.mailings), active, nil
}

type mockMessageRepo struct {
	messages map[int]*model.Message
}

func (m *mockMessageRepo) Create(msg *model.Message) error { return nil }
func (m *mockMessageRepo) GetByID(id int) (*model.Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, appErrors.NewMessageNotFound(id)
	}
	return msg, nil
}
func (m *mockMessageRepo) ListAll() ([]model.Message, error) { return nil, nil }
func (m *mockMessageRepo) Delete(id int) error               { return nil }

type mockClientRepo struct {
	mu      sync.Mutex
	deleted []int
}

func (m *mockClientRepo) Create(c *model.Client) error          { return nil }
func (m *mockClientRepo) GetByID(id int) (*model.Client, error) { return nil, nil }
func (m *mockClientRepo) ListAll() ([]model.Client, error)      { return nil, nil }
func (m *mockClientRepo) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}
func (m *mockClientRepo) Count() (int, error) { return 0, nil }

type mockAttemptRepo struct {
	mu       sync.Mutex
	attempts []model.MailingAttempt
	countErr error
}

func (m *mockAttemptRepo) Create(a *model.MailingAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = len(m.attempts) + 1
	a.AttemptedAt = time.Now()
	m.attempts = append(m.attempts, *a)
	return nil
}

func (m *mockAttemptRepo) CountByMailing(mailingID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, a := range m.attempts {
		if a.MailingID == mailingID {
			count++
		}
	}
	return count, nil
}

func (m *mockAttemptRepo) ListByMailing(mailingID int) ([]model.MailingAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MailingAttempt{}
	for _, a := range m.attempts {
		if a.MailingID == mailingID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAttemptRepo) StatsByMailing(mailingID int) (map[string]int, error) {
	return map[string]int{}, nil
}

type mockScheduler struct {
	mu        sync.Mutex
	scheduled map[int]time.Time
	removed   []int
}

func (m *mockScheduler) Schedule(jobID string, mailingID int, fireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduled == nil {
		m.scheduled = make(map[int]time.Time)
	}
	m.scheduled[mailingID] = fireAt
	return nil
}

func (m *mockScheduler) Remove(mailingID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scheduled, mailingID)
	m.removed = append(m.removed, mailingID)
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	calls int

	lastSubject string
	lastBody    string
	lastTo      []string
}

func (s *fakeSender) Send(ctx context.Context, subject, body string, to []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastSubject = subject
	s.lastBody = body
	s.lastTo = to
	return s.err
}

type testEnv struct {
	svc       *service.MailingService
	mailings  *mockMailingRepo
	clients   *mockClientRepo
	attempts  *mockAttemptRepo
	scheduler *mockScheduler
	sender    *fakeSender
}

func newTestEnv(mailing *model.Mailing, recipients []string) *testEnv {
	mailings := &mockMailingRepo{
		mailings:      map[int]*model.Mailing{},
		emails:        map[int][]string{},
		soleRecipient: map[int][]int{},
	}
	if mailing != nil {
		cp := *mailing
		mailings.mailings[mailing.ID] = &cp
		mailings.emails[mailing.ID] = recipients
	}

	clients := &mockClientRepo{}
	attempts := &mockAttemptRepo{}
	sched := &mockScheduler{}
	sender := &fakeSender{}

	svc := &service.MailingService{
		Mailings: mailings,
		Messages: &mockMessageRepo{messages: map[int]*model.Message{
			1: {ID: 1, Subject: "Hi", Body: "Body"},
		}},
		Clients:   clients,
		Attempts:  attempts,
		Sender:    sender,
		Scheduler: sched,
	}

	return &testEnv{svc: svc, mailings: mailings, clients: clients, attempts: attempts, scheduler: sched, sender: sender}
}

func createdMailing(id int) *model.Mailing {
	return &model.Mailing{
		ID:        id,
		Status:    model.StatusCreated,
		IsActive:  true,
		MessageID: 1,
	}
}

func TestSendNowSuccess(t *testing.T) {
	env := newTestEnv(createdMailing(1), []string{"a@x.com"})

	attempt, err := env.svc.SendNow(1)
	if err != nil {
		t.Fatal(err)
	}

	if attempt.Status != model.AttemptSuccess {
		t.Errorf("expected success attempt, got %s", attempt.Status)
	}
	if attempt.ServerResponse != service.SuccessResponse {
		t.Errorf("unexpected server response: %s", attempt.ServerResponse)
	}
	if env.sender.calls != 1 {
		t.Errorf("expected exactly 1 transport call, got %d", env.sender.calls)
	}
	if env.sender.lastSubject != "Hi" || env.sender.lastBody != "Body" {
		t.Errorf("wrong message sent: %s / %s", env.sender.lastSubject, env.sender.lastBody)
	}
	if len(env.sender.lastTo) != 1 || env.sender.lastTo[0] != "a@x.com" {
		t.Errorf("wrong recipients: %v", env.sender.lastTo)
	}

	m, _ := env.mailings.GetByID(1)
	if m.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", m.Status)
	}
	if m.StartDatetime == nil || m.EndDatetime == nil {
		t.Fatal("start/end datetime not set")
	}
	if m.EndDatetime.Before(*m.StartDatetime) {
		t.Error("end datetime before start datetime")
	}

	count, _ := env.attempts.CountByMailing(1)
	if count != 1 {
		t.Errorf("expected 1 attempt, got %d", count)
	}
}

func TestSendNowTransportFailure(t *testing.T) {
	env := newTestEnv(createdMailing(1), []string{"a@x.com"})
	env.sender.err = errors.New("smtp: connection refused")

	attempt, err := env.svc.SendNow(1)
	if err != nil {
		t.Fatal("a transport failure must not surface as an error, got:", err)
	}

	if attempt.Status != model.AttemptFailure {
		t.Errorf("expected failure attempt, got %s", attempt.Status)
	}
	if !strings.Contains(attempt.ServerResponse, "connection refused") {
		t.Errorf("server response should carry the failure detail, got %q", attempt.ServerResponse)
	}

	// The lifecycle still completes: failure is data, not an abort.
	m, _ := env.mailings.GetByID(1)
	if m.Status != model.StatusCompleted {
		t.Errorf("expected completed after failed send, got %s", m.Status)
	}
	count, _ := env.attempts.CountByMailing(1)
	if count != 1 {
		t.Errorf("expected 1 attempt, got %d", count)
	}
}

func TestSendNowSetsStartTimeOnce(t *testing.T) {
	env := newTestEnv(createdMailing(1), []string{"a@x.com"})

	if _, err := env.svc.SendNow(1); err != nil {
		t.Fatal(err)
	}
	first, _ := env.mailings.GetByID(1)

	if _, err := env.svc.SendNow(1); err != nil {
		t.Fatal(err)
	}
	second, _ := env.mailings.GetByID(1)

	if !second.StartDatetime.Equal(*first.StartDatetime) {
		t.Error("start datetime changed on the second send")
	}
	count, _ := env.attempts.CountByMailing(1)
	if count != 2 {
		t.Errorf("expected 2 attempts, got %d", count)
	}
}

func TestSendNowNotFound(t *testing.T) {
	env := newTestEnv(nil, nil)

	_, err := env.svc.SendNow(99)
	var notFound *appErrors.ErrMailingNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrMailingNotFound, got %v", err)
	}
	if env.sender.calls != 0 {
		t.Error("transport must not be called for a missing mailing")
	}
}

func TestSendNowInactive(t *testing.T) {
	m := createdMailing(1)
	m.IsActive = false
	env := newTestEnv(m, nil)

	_, err := env.svc.SendNow(1)
	var inactive *appErrors.ErrMailingInactive
	if !errors.As(err, &inactive) {
		t.Fatalf("expected ErrMailingInactive, got %v", err)
	}
	if env.sender.calls != 0 {
		t.Error("transport must not be called for a disabled mailing")
	}
}

func TestSendNowClearsScheduledJob(t *testing.T) {
	m := createdMailing(1)
	jobID := service.JobID(1)
	m.Status = model.StatusLaunched
	m.ScheduledJobID = &jobID
	env := newTestEnv(m, []string{"a@x.com"})

	if _, err := env.svc.SendNow(1); err != nil {
		t.Fatal(err)
	}

	got, _ := env.mailings.GetByID(1)
	if got.ScheduledJobID != nil {
		t.Error("scheduled job id not cleared after a scheduled fire")
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if len(env.scheduler.removed) != 1 || env.scheduler.removed[0] != 1 {
		t.Errorf("expected job removal for mailing 1, got %v", env.scheduler.removed)
	}
}

func TestScheduleOnceRejectsPast(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)

	_, err := env.svc.ScheduleOnce(1, time.Now().Add(-time.Minute))
	var invalid *appErrors.ErrInvalidSchedule
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	if len(env.scheduler.scheduled) != 0 {
		t.Error("no job may be registered for a past fire time")
	}
}

func TestScheduleOnce(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)
	fireAt := time.Now().Add(time.Hour)

	jobID, err := env.svc.ScheduleOnce(1, fireAt)
	if err != nil {
		t.Fatal(err)
	}
	if jobID != "mailing_once_1" {
		t.Errorf("unexpected job id %q", jobID)
	}

	m, _ := env.mailings.GetByID(1)
	if m.Status != model.StatusLaunched {
		t.Errorf("scheduling must mark the mailing launched, got %s", m.Status)
	}
	if m.ScheduledJobID == nil || *m.ScheduledJobID != jobID {
		t.Error("scheduled job id not stored on the mailing")
	}
	if got := env.scheduler.scheduled[1]; !got.Equal(fireAt) {
		t.Errorf("job registered at %v, want %v", got, fireAt)
	}
}

func TestScheduleOnceInactive(t *testing.T) {
	m := createdMailing(1)
	m.IsActive = false
	env := newTestEnv(m, nil)

	_, err := env.svc.ScheduleOnce(1, time.Now().Add(time.Hour))
	var inactive *appErrors.ErrMailingInactive
	if !errors.As(err, &inactive) {
		t.Fatalf("expected ErrMailingInactive, got %v", err)
	}
}

func TestCancelWithoutJobIsNoop(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)

	if err := env.svc.Cancel(1); err != nil {
		t.Fatal(err)
	}
	m, _ := env.mailings.GetByID(1)
	if m.Status != model.StatusCreated {
		t.Errorf("status changed by a no-op cancel: %s", m.Status)
	}
	if len(env.scheduler.removed) != 0 {
		t.Error("nothing should be removed when no job is pending")
	}
}

func TestCancelBeforeAnyAttempt(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)

	if _, err := env.svc.ScheduleOnce(1, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Cancel(1); err != nil {
		t.Fatal(err)
	}

	m, _ := env.mailings.GetByID(1)
	if m.Status != model.StatusCreated {
		t.Errorf("cancel before any attempt must revert to created, got %s", m.Status)
	}
	if m.ScheduledJobID != nil {
		t.Error("scheduled job id not cleared")
	}
	count, _ := env.attempts.CountByMailing(1)
	if count != 0 {
		t.Errorf("expected zero attempts, got %d", count)
	}
}

func TestCancelAfterAttempt(t *testing.T) {
	env := newTestEnv(createdMailing(1), []string{"a@x.com"})

	if _, err := env.svc.SendNow(1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.ScheduleOnce(1, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Cancel(1); err != nil {
		t.Fatal(err)
	}

	m, _ := env.mailings.GetByID(1)
	if m.Status != model.StatusCompleted {
		t.Errorf("cancel after an attempt must complete, got %s", m.Status)
	}
	if m.ScheduledJobID != nil {
		t.Error("scheduled job id not cleared")
	}
}

func TestDisable(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)

	if _, err := env.svc.ScheduleOnce(1, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Disable(1); err != nil {
		t.Fatal(err)
	}

	m, _ := env.mailings.GetByID(1)
	if m.IsActive {
		t.Error("mailing still active after disable")
	}
	if m.ScheduledJobID != nil {
		t.Error("pending job not cancelled by disable")
	}

	// Disabled for good: a later send is rejected.
	_, err := env.svc.SendNow(1)
	var inactive *appErrors.ErrMailingInactive
	if !errors.As(err, &inactive) {
		t.Fatalf("expected ErrMailingInactive after disable, got %v", err)
	}

	// Second disable is a no-op.
	if err := env.svc.Disable(1); err != nil {
		t.Fatal(err)
	}
}

func TestCancelPersistsClearedJobOnCountError(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)

	if _, err := env.svc.ScheduleOnce(1, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	env.attempts.countErr = errors.New("db down")

	if err := env.svc.Cancel(1); err == nil {
		t.Fatal("expected the reconcile count error to surface")
	}

	m, _ := env.mailings.GetByID(1)
	if m.ScheduledJobID != nil {
		t.Error("cleared job id must be persisted even when the reconcile count fails")
	}
	if len(env.scheduler.removed) != 1 || env.scheduler.removed[0] != 1 {
		t.Errorf("expected job removal for mailing 1, got %v", env.scheduler.removed)
	}
}

func TestDeleteClientRemovesSoleRecipientMailings(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)
	// Mailing 2 keeps other recipients and must survive.
	env.mailings.mailings[2] = &model.Mailing{ID: 2, Status: model.StatusCreated, IsActive: true, MessageID: 1}
	env.mailings.soleRecipient[5] = []int{1}

	// Mailing 1 has a pending job that must be cancelled with it.
	if _, err := env.svc.ScheduleOnce(1, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.DeleteClient(5); err != nil {
		t.Fatal(err)
	}

	if _, err := env.mailings.GetByID(1); err == nil {
		t.Error("sole-recipient mailing must be removed with its client")
	}
	if _, err := env.mailings.GetByID(2); err != nil {
		t.Error("mailing with other recipients must survive")
	}
	if len(env.scheduler.removed) != 1 || env.scheduler.removed[0] != 1 {
		t.Errorf("expected job removal for mailing 1, got %v", env.scheduler.removed)
	}
	if len(env.clients.deleted) != 1 || env.clients.deleted[0] != 5 {
		t.Errorf("expected client 5 deleted, got %v", env.clients.deleted)
	}
}

func TestDeleteClientWithSharedMailingsOnly(t *testing.T) {
	env := newTestEnv(createdMailing(1), nil)

	if err := env.svc.DeleteClient(9); err != nil {
		t.Fatal(err)
	}

	if _, err := env.mailings.GetByID(1); err != nil {
		t.Error("no mailing may be removed when the client was not a sole recipient")
	}
	if len(env.clients.deleted) != 1 || env.clients.deleted[0] != 9 {
		t.Errorf("expected client 9 deleted, got %v", env.clients.deleted)
	}
}

func TestConcurrentSendsSerialize(t *testing.T) {
	env := newTestEnv(createdMailing(1), []string{"a@x.com"})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.SendNow(1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	count, _ := env.attempts.CountByMailing(1)
	if count != 2 {
		t.Errorf("expected 2 attempts, got %d", count)
	}
	if env.sender.calls != 2 {
		t.Errorf("expected 2 transport calls, got %d", env.sender.calls)
	}
	m, _ := env.mailings.GetByID(1)
	if m.Status != model.StatusCompleted {
		t.Errorf("expected completed after serialized sends, got %s", m.Status)
	}
}
