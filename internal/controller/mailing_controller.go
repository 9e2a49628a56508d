// internal/controller/mailing_controller.go
package controller

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/go-chi/chi/v5"

    "github.com/unclebandit/mailflow-backend/internal/auth"
    appErrors "github.com/unclebandit/mailflow-backend/internal/errors"
    "github.com/unclebandit/mailflow-backend/internal/model"
    "github.com/unclebandit/mailflow-backend/internal/service"
)

type MailingController struct {
    MailingService *service.MailingService
}

// actorFromRequest trusts the identity headers set by the auth layer
// in front of this service. Authentication itself happens there.
func actorFromRequest(r *http.Request) auth.Actor {
    id, _ := strconv.Atoi(r.Header.Get("X-User-ID"))
    role := auth.Role(r.Header.Get("X-User-Role"))
    if role == "" {
        role = auth.RoleOwner
    }
    return auth.Actor{ID: id, Role: role}
}

// errStatus maps the error taxonomy to HTTP status codes
func errStatus(err error) int {
    var notFound *appErrors.ErrMailingNotFound
    var msgNotFound *appErrors.ErrMessageNotFound
    var clientNotFound *appErrors.ErrClientNotFound
    var inactive *appErrors.ErrMailingInactive
    var invalidSchedule *appErrors.ErrInvalidSchedule

    switch {
    case errors.As(err, &notFound), errors.As(err, &msgNotFound), errors.As(err, &clientNotFound):
        return http.StatusNotFound
    case errors.As(err, &inactive), errors.As(err, &invalidSchedule):
        return http.StatusBadRequest
    }
    return http.StatusInternalServerError
}

func (c *MailingController) loadAuthorized(w http.ResponseWriter, r *http.Request, action auth.Action) *model.Mailing {
    idStr := chi.URLParam(r, "id")
    id, _ := strconv.Atoi(idStr)

    m, err := c.MailingService.Mailings.GetByID(id)
    if err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return nil
    }
    if !auth.Authorize(actorFromRequest(r), action, m.OwnerID) {
        http.Error(w, "forbidden", http.StatusForbidden)
        return nil
    }
    return m
}

func (c *MailingController) CreateMailing(w http.ResponseWriter, r *http.Request) {
    var body struct {
        MessageID int   `json:"message_id"`
        ClientIDs []int `json:"client_ids"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    m := &model.Mailing{
        OwnerID:   actorFromRequest(r).ID,
        MessageID: body.MessageID,
    }
    if err := c.MailingService.Mailings.Create(m, body.ClientIDs); err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(m)
}

func (c *MailingController) ListMailings(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    status := r.URL.Query().Get("status")

    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }

    mailings, pagination, err := c.MailingService.ListMailings(page, pageSize, status)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    json.NewEncoder(w).Encode(map[string]interface{}{
        "data":       mailings,
        "pagination": pagination,
    })
}

func (c *MailingController) GetMailing(w http.ResponseWriter, r *http.Request) {
    m := c.loadAuthorized(w, r, auth.ActionView)
    if m == nil {
        return
    }

    details, err := c.MailingService.GetMailingDetails(m.ID)
    if err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    json.NewEncoder(w).Encode(details)
}

// SendMailing triggers one immediate delivery attempt and returns the
// recorded outcome. A transport failure still responds 200: the
// attempt is data, not an error.
func (c *MailingController) SendMailing(w http.ResponseWriter, r *http.Request) {
    m := c.loadAuthorized(w, r, auth.ActionSend)
    if m == nil {
        return
    }

    attempt, err := c.MailingService.SendNow(m.ID)
    if err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }

    json.NewEncoder(w).Encode(map[string]interface{}{
        "mailing_id":      m.ID,
        "status":          attempt.Status,
        "server_response": attempt.ServerResponse,
    })
}

func (c *MailingController) ScheduleMailing(w http.ResponseWriter, r *http.Request) {
    m := c.loadAuthorized(w, r, auth.ActionSchedule)
    if m == nil {
        return
    }

    var body struct {
        ScheduledTime string `json:"scheduled_time"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    fireAt, err := time.Parse(time.RFC3339, body.ScheduledTime)
    if err != nil {
        http.Error(w, "invalid scheduled_time, expected RFC3339", http.StatusBadRequest)
        return
    }

    jobID, err := c.MailingService.ScheduleOnce(m.ID, fireAt)
    if err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }

    json.NewEncoder(w).Encode(map[string]interface{}{
        "mailing_id": m.ID,
        "job_id":     jobID,
        "fire_at":    fireAt,
    })
}

func (c *MailingController) CancelMailing(w http.ResponseWriter, r *http.Request) {
    m := c.loadAuthorized(w, r, auth.ActionCancel)
    if m == nil {
        return
    }

    if err := c.MailingService.Cancel(m.ID); err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (c *MailingController) DisableMailing(w http.ResponseWriter, r *http.Request) {
    m := c.loadAuthorized(w, r, auth.ActionDisable)
    if m == nil {
        return
    }

    if err := c.MailingService.Disable(m.ID); err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (c *MailingController) DeleteMailing(w http.ResponseWriter, r *http.Request) {
    m := c.loadAuthorized(w, r, auth.ActionDelete)
    if m == nil {
        return
    }

    if err := c.MailingService.Delete(m.ID); err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (c *MailingController) GetStatistics(w http.ResponseWriter, r *http.Request) {
    stats, err := c.MailingService.GetStatistics()
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    json.NewEncoder(w).Encode(stats)
}
