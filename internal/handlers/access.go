package handlers

import (
	"context"
	"net/http"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
)

type AccessService interface {
	RequestClientAccess(ctx context.Context, actor *models.User, clientID, clientName string) (*models.AccessRequest, error)
	ApproveAccessRequest(ctx context.Context, caller *models.User, requestID string) (*models.AccessRequest, error)
	RejectAccessRequest(ctx context.Context, caller *models.User, requestID string) (*models.AccessRequest, error)
	GetPendingRequests(ctx context.Context, actor *models.User) []models.AccessRequest
	RequestsBy(ctx context.Context, actor *models.User) []models.AccessRequest
}

type AccessHandler struct {
	service AccessService
	errors  *middleware.ErrorWriter
}

type AccessRequestBody struct {
	ClientID   string `json:"clientId"`
	ClientName string `json:"clientName"`
}

type ResolveRequestBody struct {
	Status models.AccessRequestStatus `json:"status"`
}

// AccessRequestsResponse lists the requests the caller can resolve and
// the ones the caller filed.
type AccessRequestsResponse struct {
	Pending []models.AccessRequest `json:"pending"`
	Mine    []models.AccessRequest `json:"mine"`
}

func NewAccessHandler(service AccessService, errs *middleware.ErrorWriter) *AccessHandler {
	return &AccessHandler{service: service, errors: errs}
}

func (h *AccessHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, AccessRequestsResponse{
		Pending: h.service.GetPendingRequests(r.Context(), caller),
		Mine:    h.service.RequestsBy(r.Context(), caller),
	})
}

func (h *AccessHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var body AccessRequestBody
	if err := middleware.DecodeJSON(r, &body); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if body.ClientID == "" {
		h.errors.Write(w, r, apperrors.NewInvalidRequestError("Invalid access request", map[string]string{
			"clientId": "is required",
		}))
		return
	}

	req, err := h.service.RequestClientAccess(r.Context(), caller, body.ClientID, body.ClientName)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusCreated, req)
}

// Resolve approves or rejects a pending request.
func (h *AccessHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	var body ResolveRequestBody
	if err := middleware.DecodeJSON(r, &body); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	var req *models.AccessRequest
	switch body.Status {
	case models.AccessApproved:
		req, err = h.service.ApproveAccessRequest(r.Context(), caller, pathID(r))
	case models.AccessRejected:
		req, err = h.service.RejectAccessRequest(r.Context(), caller, pathID(r))
	default:
		err = apperrors.NewInvalidRequestError("Invalid status", map[string]string{
			"status": "must be one of: approved, rejected",
		})
	}
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, req)
}
