package handlers

import (
	"context"
	"net/http"

	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/recommendation"
)

type RecommendationService interface {
	Create(ctx context.Context, actor *models.User, d recommendation.Draft) (*models.Recommendation, error)
	Update(ctx context.Context, actor *models.User, id string, p recommendation.Patch) (*models.Recommendation, error)
	Delete(ctx context.Context, actor *models.User, id string) error
	List(ctx context.Context, actor *models.User) ([]models.Recommendation, error)
	Get(ctx context.Context, actor *models.User, id string) (*models.Recommendation, error)
	AcknowledgeByClient(ctx context.Context, actor *models.User, id string) (*models.Recommendation, error)
}

type RecommendationHandler struct {
	service RecommendationService
	errors  *middleware.ErrorWriter
}

func NewRecommendationHandler(service RecommendationService, errs *middleware.ErrorWriter) *RecommendationHandler {
	return &RecommendationHandler{service: service, errors: errs}
}

// List returns what the caller can see: everything for admins, assigned
// recommendations for clients.
func (h *RecommendationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	recs, err := h.service.List(r.Context(), caller)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, recs)
}

func (h *RecommendationHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	rec, err := h.service.Get(r.Context(), caller, pathID(r))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

func (h *RecommendationHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var d recommendation.Draft
	if err := middleware.DecodeJSON(r, &d); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	rec, err := h.service.Create(r.Context(), caller, d)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusCreated, rec)
}

func (h *RecommendationHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var p recommendation.Patch
	if err := middleware.DecodeJSON(r, &p); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	rec, err := h.service.Update(r.Context(), caller, pathID(r), p)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, rec)
}

func (h *RecommendationHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *RecommendationHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	rec, err := h.service.AcknowledgeByClient(r.Context(), caller, pathID(r))
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, rec)
}
