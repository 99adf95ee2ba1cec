package handlers

import (
	"context"
	"net/http"

	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/client"
)

type ClientService interface {
	Create(ctx context.Context, actor *models.User, in client.Input) (*models.Client, error)
	Update(ctx context.Context, actor *models.User, id string, p client.Patch) (*models.Client, error)
	Delete(ctx context.Context, actor *models.User, id string) error
	List(ctx context.Context, actor *models.User) ([]models.ClientSummary, error)
	Get(ctx context.Context, actor *models.User, id string) (*models.ClientSummary, error)
}

type ClientHandler struct {
	service ClientService
	errors  *middleware.ErrorWriter
}

func NewClientHandler(service ClientService, errs *middleware.ErrorWriter) *ClientHandler {
	return &ClientHandler{service: service, errors: errs}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	clients, err := h.service.List(r.Context(), caller)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, clients)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	c, err := h.service.Get(r.Context(), caller, pathID(r))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var in client.Input
	if err := middleware.DecodeJSON(r, &in); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	c, err := h.service.Create(r.Context(), caller, in)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var p client.Patch
	if err := middleware.DecodeJSON(r, &p); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	c, err := h.service.Update(r.Context(), caller, pathID(r), p)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, c)
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), caller, pathID(r)); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
