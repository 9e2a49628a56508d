// internal/controller/catalog_controller.go
package controller

import (
    "encoding/json"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    "github.com/unclebandit/mailflow-backend/internal/model"
    "github.com/unclebandit/mailflow-backend/internal/repository"
    "github.com/unclebandit/mailflow-backend/internal/service"
)

// CatalogController serves the message and client records that
// mailings reference.
type CatalogController struct {
    Messages       repository.MessageRepositoryInterface
    Clients        repository.ClientRepositoryInterface
    MailingService *service.MailingService
}

func (c *CatalogController) CreateMessage(w http.ResponseWriter, r *http.Request) {
    var body struct {
        Subject string `json:"subject"`
        Body    string `json:"body"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.Subject == "" {
        http.Error(w, "subject is required", http.StatusBadRequest)
        return
    }

    m := &model.Message{Subject: body.Subject, Body: body.Body}
    if err := c.Messages.Create(m); err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    json.NewEncoder(w).Encode(m)
}

func (c *CatalogController) ListMessages(w http.ResponseWriter, r *http.Request) {
    messages, err := c.Messages.ListAll()
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    json.NewEncoder(w).Encode(messages)
}

func (c *CatalogController) GetMessage(w http.ResponseWriter, r *http.Request) {
    id, _ := strconv.Atoi(chi.URLParam(r, "id"))

    m, err := c.Messages.GetByID(id)
    if err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    json.NewEncoder(w).Encode(m)
}

func (c *CatalogController) DeleteMessage(w http.ResponseWriter, r *http.Request) {
    id, _ := strconv.Atoi(chi.URLParam(r, "id"))

    if err := c.Messages.Delete(id); err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

func (c *CatalogController) CreateClient(w http.ResponseWriter, r *http.Request) {
    var body struct {
        Email      string `json:"email"`
        FirstName  string `json:"first_name"`
        Surname    string `json:"surname"`
        Patronymic string `json:"patronymic"`
        Comment    string `json:"comment"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.Email == "" {
        http.Error(w, "email is required", http.StatusBadRequest)
        return
    }

    client := &model.Client{
        Email:      body.Email,
        FirstName:  body.FirstName,
        Surname:    body.Surname,
        Patronymic: body.Patronymic,
        Comment:    body.Comment,
    }
    if err := c.Clients.Create(client); err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    json.NewEncoder(w).Encode(client)
}

func (c *CatalogController) GetClient(w http.ResponseWriter, r *http.Request) {
    id, _ := strconv.Atoi(chi.URLParam(r, "id"))

    client, err := c.Clients.GetByID(id)
    if err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    json.NewEncoder(w).Encode(client)
}

func (c *CatalogController) ListClients(w http.ResponseWriter, r *http.Request) {
    clients, err := c.Clients.ListAll()
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }
    json.NewEncoder(w).Encode(clients)
}

// DeleteClient also removes mailings for which this client was the
// only recipient.
func (c *CatalogController) DeleteClient(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, _ := strconv.Atoi(idStr)

    if err := c.MailingService.DeleteClient(id); err != nil {
        http.Error(w, err.Error(), errStatus(err))
        return
    }
    w.WriteHeader(http.StatusNoContent)
}
