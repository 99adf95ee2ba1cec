package handlers

import (
	"context"
	"net/http"

	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/subscription"
)

type SubscriptionService interface {
	List(ctx context.Context) ([]models.Subscription, error)
	Create(ctx context.Context, actor *models.User, in subscription.Input) (*models.Subscription, error)
	Update(ctx context.Context, actor *models.User, id string, in subscription.Input) (*models.Subscription, error)
	Delete(ctx context.Context, actor *models.User, id string) error
}

type SubscriptionHandler struct {
	service SubscriptionService
	errors  *middleware.ErrorWriter
}

func NewSubscriptionHandler(service SubscriptionService, errs *middleware.ErrorWriter) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, errors: errs}
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context())
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, subs)
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var in subscription.Input
	if err := middleware.DecodeJSON(r, &in); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	sub, err := h.service.Create(r.Context(), caller, in)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusCreated, sub)
}

func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var in subscription.Input
	if err := middleware.DecodeJSON(r, &in); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	sub, err := h.service.Update(r.Context(), caller, pathID(r), in)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, sub)
}

// Delete moves the subscription's clients to the default subscription
// before removing it.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
