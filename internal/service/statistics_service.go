// internal/service/statistics_service.go
package service

import (
    "time"

    "github.com/unclebandit/mailflow-backend/internal/model"
)

type Statistics struct {
    TotalMailings    int `json:"total_mailings"`
    ActiveMailings   int `json:"active_mailings"`
    UniqueRecipients int `json:"unique_recipients"`
}

type MailingDetails struct {
    ID             int                    `json:"id"`
    OwnerID        int                    `json:"owner_id"`
    Status         string                 `json:"status"`
    StartDatetime  *time.Time             `json:"start_datetime,omitempty"`
    EndDatetime    *time.Time             `json:"end_datetime,omitempty"`
    ScheduledJobID *string                `json:"scheduled_job_id,omitempty"`
    IsActive       bool                   `json:"is_active"`
    MessageID      int                    `json:"message_id"`
    CreatedAt      time.Time              `json:"created_at"`
    Stats          map[string]int         `json:"stats"`
    Attempts       []model.MailingAttempt `json:"attempts"`
}

// GetStatistics aggregates the service-wide numbers for the
// dashboard: total and in-flight mailings plus distinct recipients.
func (s *MailingService) GetStatistics() (*Statistics, error) {
    total, active, err := s.Mailings.CountMailings()
    if err != nil {
        return nil, err
    }

    recipients, err := s.Clients.Count()
    if err != nil {
        return nil, err
    }

    return &Statistics{
        TotalMailings:    total,
        ActiveMailings:   active,
        UniqueRecipients: recipients,
    }, nil
}

// GetMailingDetails returns one mailing with its attempt history and
// per-status attempt counts.
func (s *MailingService) GetMailingDetails(mailingID int) (*MailingDetails, error) {
    m, err := s.Mailings.GetByID(mailingID)
    if err != nil {
        return nil, err
    }

    stats, err := s.Attempts.StatsByMailing(mailingID)
    if err != nil {
        return nil, err
    }

    attempts, err := s.Attempts.ListByMailing(mailingID)
    if err != nil {
        return nil, err
    }

    return &MailingDetails{
        ID:             m.ID,
        OwnerID:        m.OwnerID,
        Status:         m.Status,
        StartDatetime:  m.StartDatetime,
        EndDatetime:    m.EndDatetime,
        ScheduledJobID: m.ScheduledJobID,
        IsActive:       m.IsActive,
        MessageID:      m.MessageID,
        CreatedAt:      m.CreatedAt,
        Stats:          stats,
        Attempts:       attempts,
    }, nil
}

// ListMailings fetches mailings with pagination
func (s *MailingService) ListMailings(page, pageSize int, status string) ([]model.Mailing, map[string]int, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }
    offset := (page - 1) * pageSize

    ptrs, total, err := s.Mailings.ListMailings(offset, pageSize, status)
    if err != nil {
        return nil, nil, err
    }

    mailings := make([]model.Mailing, len(ptrs))
    for i, m := range ptrs {
        mailings[i] = *m
    }

    totalPages := (total + pageSize - 1) / pageSize
    pagination := map[string]int{
        "page":        page,
        "page_size":   pageSize,
        "total_count": total,
        "total_pages": totalPages,
    }

    return mailings, pagination, nil
}
