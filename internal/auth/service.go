package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

// Result is the outcome of a successful login or registration.
type Result struct {
	User      models.User `json:"user"`
	SessionID string      `json:"sessionId"`
	Tokens    *TokenPair  `json:"tokens"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// ProfileUpdate merges non-empty fields into a user. NewPassword needs
// CurrentPassword when users change their own password.
type ProfileUpdate struct {
	Name            string
	Email           string
	NewPassword     string
	CurrentPassword string
}

type Service struct {
	store    *repository.Store
	sessions *SessionStore
	tokens   *JWTManager
	log      *logger.Logger
	cost     int
	now      func() time.Time
}

type Option func(*Service)

func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.sessions.now = now
		s.tokens.now = now
		s.tokens.blacklist.now = now
	}
}

func NewService(store *repository.Store, sessions *SessionStore, tokens *JWTManager, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sessions: sessions,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Sessions() *SessionStore { return s.sessions }

// Login authenticates email/password on sessionID. An empty sessionID
// starts a new session. A session already logged in as another user is
// left alone and the login fails with SessionInUse.
func (s *Service) Login(ctx context.Context, sessionID, email, password string) (*Result, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := s.sessions.Begin(sessionID); err != nil {
		return nil, err
	}

	user, err := s.verify(ctx, strings.TrimSpace(email), password)
	if err != nil {
		s.sessions.Fail(sessionID)
		return nil, err
	}

	now := s.now()
	err = s.store.Users.Update(ctx, func(users []models.User) ([]models.User, error) {
		for i := range users {
			if users[i].ID == user.ID {
				users[i].LastLoginAt = &now
			}
		}
		return users, nil
	})
	if err != nil {
		s.log.WithFields(map[string]interface{}{
			"user_id": user.ID,
			"error":   err.Error(),
		}).Warn("Failed to record last login")
	}
	user.LastLoginAt = &now

	return s.complete(sessionID, user)
}

func (s *Service) verify(ctx context.Context, email, password string) (models.User, error) {
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return models.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			if CheckPassword(u.PasswordHash, password) {
				return u, nil
			}
			break
		}
	}
	return models.User{}, apperrors.NewInvalidCredentialsError()
}

// Register creates a client account and logs sessionID in as it.
func (s *Service) Register(ctx context.Context, sessionID string, in RegisterInput) (*Result, error) {
	if in.Role == "" {
		in.Role = models.RoleClient
	}
	if in.Role != models.RoleClient {
		return nil, apperrors.NewForbiddenError("Admins are created by the main admin")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := s.sessions.Begin(sessionID); err != nil {
		return nil, err
	}
	// A new account can never take over a session someone is logged in on.
	if s.sessions.State(sessionID) == StateLoggedIn {
		s.sessions.Fail(sessionID)
		return nil, apperrors.NewSessionInUseError()
	}

	user, err := s.createUser(ctx, in)
	if err != nil {
		s.sessions.Fail(sessionID)
		return nil, err
	}

	return s.complete(sessionID, user)
}

// CreateSubAdmin adds an admin account. Only the main admin may call it,
// and the caller's own session is left untouched.
func (s *Service) CreateSubAdmin(ctx context.Context, caller *models.User, in RegisterInput) (models.User, error) {
	if caller == nil || !caller.IsMainAdmin {
		return models.User{}, apperrors.NewForbiddenError("Only the main admin can create admins")
	}
	in.Role = models.RoleAdmin

	user, err := s.createUser(ctx, in)
	if err != nil {
		return models.User{}, err
	}

	s.log.WithFields(map[string]interface{}{
		"admin_id":   user.ID,
		"created_by": caller.ID,
	}).Info("Sub-admin created")
	return user.Public(), nil
}

// EnsureMainAdmin creates the main admin unless one already exists.
func (s *Service) EnsureMainAdmin(ctx context.Context, name, email, password string) (models.User, bool, error) {
	hash, err := HashPassword(password, s.cost)
	if err != nil {
		return models.User{}, false, apperrors.NewInternalError("Failed to hash password", err)
	}

	var admin models.User
	created := false
	err = s.store.Users.Update(ctx, func(users []models.User) ([]models.User, error) {
		for _, u := range users {
			if u.IsMainAdmin {
				admin = u
				return users, nil
			}
		}
		now := s.now()
		admin = models.User{
			ID:           uuid.NewString(),
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			IsMainAdmin:  true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		created = true
		return append(users, admin), nil
	})
	if err != nil {
		return models.User{}, false, err
	}
	return admin.Public(), created, nil
}

func (s *Service) createUser(ctx context.Context, in RegisterInput) (models.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return models.User{}, apperrors.NewInvalidRequestError("Email and password are required", map[string]string{
			"email":    "required",
			"password": "required",
		})
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return models.User{}, apperrors.NewInternalError("Failed to hash password", err)
	}

	// A client login shares its id with the client record of the same
	// email, so recommendation assignment and acknowledgment line up.
	id := uuid.NewString()
	if in.Role == models.RoleClient {
		if linked, ok := s.unclaimedClientID(ctx, email); ok {
			id = linked
		}
	}

	now := s.now()
	user := models.User{
		ID:           id,
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.Users.Update(ctx, func(users []models.User) ([]models.User, error) {
		for _, u := range users {
			if u.Email == email {
				return nil, apperrors.NewDuplicateEmailError(email)
			}
			if u.ID == user.ID {
				user.ID = uuid.NewString()
			}
		}
		return append(users, user), nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Service) unclaimedClientID(ctx context.Context, email string) (string, bool) {
	clients, err := s.store.Clients.List(ctx)
	if err != nil {
		s.log.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("Could not look up client record for registration")
		return "", false
	}
	for _, c := range clients {
		if strings.EqualFold(c.Email, email) {
			return c.ID, true
		}
	}
	return "", false
}

func (s *Service) complete(sessionID string, user models.User) (*Result, error) {
	pair, err := s.tokens.GenerateTokens(user.ID, user.Email, string(user.Role), sessionID)
	if err != nil {
		s.sessions.Fail(sessionID)
		return nil, apperrors.NewInternalError("Failed to issue tokens", err)
	}

	if err := s.sessions.Complete(sessionID, user); err != nil {
		s.log.WithFields(map[string]interface{}{
			"session_id": sessionID,
			"user_id":    user.ID,
		}).Warn("Refused login on a session held by another user")
		return nil, err
	}
	return &Result{
		User:      user.Public(),
		SessionID: sessionID,
		Tokens:    pair,
	}, nil
}

// UpdateUserProfile merges patch into the user and refreshes every session
// logged in as that user. Callers may edit themselves; the main admin may
// edit anyone.
func (s *Service) UpdateUserProfile(ctx context.Context, caller *models.User, userID string, patch ProfileUpdate) (models.User, error) {
	if caller == nil || (caller.ID != userID && !caller.IsMainAdmin) {
		return models.User{}, apperrors.NewForbiddenError("Cannot update another user's profile")
	}

	current, err := s.store.Users.Get(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	var newHash string
	if patch.NewPassword != "" {
		if caller.ID == userID && !CheckPassword(current.PasswordHash, patch.CurrentPassword) {
			return models.User{}, apperrors.NewInvalidCredentialsError().WithDetails(map[string]interface{}{
				"field": "currentPassword",
			})
		}
		newHash, err = HashPassword(patch.NewPassword, s.cost)
		if err != nil {
			return models.User{}, apperrors.NewInternalError("Failed to hash password", err)
		}
	}

	email := strings.TrimSpace(patch.Email)
	var updated models.User
	err = s.store.Users.Update(ctx, func(users []models.User) ([]models.User, error) {
		idx := -1
		for i, u := range users {
			if u.ID == userID {
				idx = i
				continue
			}
			if email != "" && u.Email == email {
				return nil, apperrors.NewDuplicateEmailError(email)
			}
		}
		if idx < 0 {
			return nil, apperrors.NewResourceNotFoundError("user", userID)
		}

		u := &users[idx]
		if name := strings.TrimSpace(patch.Name); name != "" {
			u.Name = name
		}
		if email != "" {
			u.Email = email
		}
		if newHash != "" {
			u.PasswordHash = newHash
		}
		u.UpdatedAt = s.now()
		updated = *u
		return users, nil
	})
	if err != nil {
		return models.User{}, err
	}

	refreshed := s.sessions.RefreshUser(updated)
	s.log.WithFields(map[string]interface{}{
		"user_id":   userID,
		"sessions":  refreshed,
		"password":  newHash != "",
		"caller_id": caller.ID,
	}).Info("Profile updated")
	return updated.Public(), nil
}

// Logout clears the session and revokes the token it was called with.
func (s *Service) Logout(sessionID, accessToken string) {
	s.sessions.End(sessionID)
	if accessToken == "" {
		return
	}
	claims, err := s.tokens.ValidateToken(accessToken)
	if err != nil {
		return
	}
	if err := s.tokens.BlacklistToken(accessToken, claims); err != nil {
		s.log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("Failed to revoke token")
	}
}

// Authenticate resolves an access token to the logged-in actor.
func (s *Service) Authenticate(accessToken string) (models.User, *Claims, error) {
	claims, err := s.tokens.ValidateKind(accessToken, KindAccess)
	if err != nil {
		return models.User{}, nil, tokenError(err)
	}

	user, ok := s.sessions.Current(claims.SessionID)
	if !ok || user.ID != claims.UserID {
		return models.User{}, nil, apperrors.NewSessionClosedError()
	}
	return user, claims, nil
}

// Refresh exchanges a refresh token of a live session for a new pair.
func (s *Service) Refresh(refreshToken string) (*Result, error) {
	claims, err := s.tokens.ValidateKind(refreshToken, KindRefresh)
	if err != nil {
		return nil, tokenError(err)
	}
	user, ok := s.sessions.Current(claims.SessionID)
	if !ok || user.ID != claims.UserID {
		return nil, apperrors.NewSessionClosedError()
	}

	pair, _, err := s.tokens.RefreshTokens(refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}
	s.sessions.Touch(claims.SessionID)
	return &Result{User: user, SessionID: claims.SessionID, Tokens: pair}, nil
}

// ListUsers returns every user without password hashes. Admins only.
func (s *Service) ListUsers(ctx context.Context, caller *models.User) ([]models.User, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can list users")
	}
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.NewTokenExpiredError()
	}
	return apperrors.NewInvalidTokenError()
}
