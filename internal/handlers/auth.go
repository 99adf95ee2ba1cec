package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Cryptoprojectsfun/advisorhub/internal/auth"
	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/middleware"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/validator"
)

type AuthService interface {
	Login(ctx context.Context, sessionID, email, password string) (*auth.Result, error)
	Register(ctx context.Context, sessionID string, in auth.RegisterInput) (*auth.Result, error)
	CreateSubAdmin(ctx context.Context, caller *models.User, in auth.RegisterInput) (models.User, error)
	UpdateUserProfile(ctx context.Context, caller *models.User, userID string, patch auth.ProfileUpdate) (models.User, error)
	ListUsers(ctx context.Context, caller *models.User) ([]models.User, error)
	Logout(sessionID, accessToken string)
	Refresh(refreshToken string) (*auth.Result, error)
}

type AuthHandler struct {
	service AuthService
	errors  *middleware.ErrorWriter
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type UpdateUserRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	CurrentPassword string `json:"currentPassword"`
}

type AuthResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	SessionID    string      `json:"sessionId"`
	User         models.User `json:"user"`
}

func NewAuthHandler(service AuthService, errs *middleware.ErrorWriter) *AuthHandler {
	return &AuthHandler{service: service, errors: errs}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	res, err := h.service.Login(r.Context(), r.Header.Get(SessionHeader), req.Email, req.Password)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, authResponse(res))
}

// Register creates a client account and logs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := validateRegisterRequest(req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	res, err := h.service.Register(r.Context(), r.Header.Get(SessionHeader), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.RoleClient,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusCreated, authResponse(res))
}

func (h *AuthHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	var req RegisterRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if err := validateRegisterRequest(req); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	user, err := h.service.CreateSubAdmin(r.Context(), caller, auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusCreated, user)
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	users, err := h.service.ListUsers(r.Context(), caller)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, users)
}

func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, err := actor(r)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	var req UpdateUserRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	v := validator.New()
	if req.Email != "" {
		v.ValidateEmail(req.Email)
	}
	if req.Password != "" {
		v.ValidatePassword("password", req.Password)
	}
	if err := v.Err("Invalid profile"); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	user, err := h.service.UpdateUserProfile(r.Context(), caller, pathID(r), auth.ProfileUpdate{
		Name:            req.Name,
		Email:           req.Email,
		NewPassword:     req.Password,
		CurrentPassword: req.CurrentPassword,
	})
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		sessionID = claims.SessionID
	}
	h.service.Logout(sessionID, middleware.TokenFromContext(r.Context()))
	respond(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		h.errors.Write(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		h.errors.Write(w, r, apperrors.NewInvalidRequestError("Refresh token is required", map[string]string{
			"refreshToken": "is required",
		}))
		return
	}

	res, err := h.service.Refresh(req.RefreshToken)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond(w, http.StatusOK, authResponse(res))
}

func authResponse(res *auth.Result) AuthResponse {
	return AuthResponse{
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.ExpiresAt,
		SessionID:    res.SessionID,
		User:         res.User.Public(),
	}
}

func validateRegisterRequest(req RegisterRequest) error {
	v := validator.New()
	v.Required("name", req.Name)
	v.MaxLength("name", req.Name, 100)
	v.ValidateEmail(req.Email)
	v.ValidatePassword("password", req.Password)
	return v.Err("Invalid registration")
}
