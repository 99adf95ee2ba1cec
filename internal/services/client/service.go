package client

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
	"github.com/Cryptoprojectsfun/advisorhub/internal/services/recommendation"
	"github.com/Cryptoprojectsfun/advisorhub/internal/validator"
)

// AccessChecker answers whether an admin may act on a client.
type AccessChecker interface {
	IsMainAdmin(actor *models.User) bool
	OwnerOf(ctx context.Context, clientID string) string
	HasAccessToClient(ctx context.Context, actor *models.User, clientID string) bool
}

type Input struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Status         string `json:"status"`
	SubscriptionID string `json:"subscriptionId"`
}

type Patch struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	Status         *string `json:"status"`
	SubscriptionID *string `json:"subscriptionId"`
}

type Service struct {
	store  *repository.Store
	access AccessChecker
	log    *logger.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *repository.Store, access AccessChecker, log *logger.Logger, opts ...Option) *Service {
	s := &Service{store: store, access: access, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create adds a client owned by actor. A client login registered earlier
// with the same email lends its id to the new record.
func (s *Service) Create(ctx context.Context, actor *models.User, in Input) (*models.Client, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can create clients")
	}

	c := models.Client{
		Name:           strings.TrimSpace(in.Name),
		Email:          strings.TrimSpace(in.Email),
		Phone:          strings.TrimSpace(in.Phone),
		Status:         models.ClientStatus(in.Status),
		SubscriptionID: in.SubscriptionID,
		OwnerID:        actor.ID,
		CreatedAt:      s.now(),
	}
	if c.Status == "" {
		c.Status = models.ClientActive
	}
	if c.SubscriptionID == "" {
		c.SubscriptionID = models.DefaultSubscriptionID
	}
	if err := validate(c); err != nil {
		return nil, err
	}

	c.ID = "client-" + uuid.NewString()
	if id, ok := s.loginID(ctx, c.Email); ok {
		c.ID = id
	}

	err := s.store.Clients.Update(ctx, func(clients []models.Client) ([]models.Client, error) {
		if err := s.subscriptionExists(ctx, c.SubscriptionID); err != nil {
			return nil, err
		}
		for _, existing := range clients {
			if existing.ID == c.ID {
				c.ID = "client-" + uuid.NewString()
				break
			}
		}
		return append(clients, c), nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"client_id":       c.ID,
		"owner_id":        c.OwnerID,
		"subscription_id": c.SubscriptionID,
	}).Info("Client created")
	return &c, nil
}

// Update changes a client. Only the owner or the main admin may do so;
// an approved access request does not grant editing. Moving a client to
// another subscription leaves existing recommendations untouched. The
// patch is applied to the stored record under the collection lock.
func (s *Service) Update(ctx context.Context, actor *models.User, id string, p Patch) (*models.Client, error) {
	var updated models.Client
	err := s.store.Clients.Update(ctx, func(clients []models.Client) ([]models.Client, error) {
		for i := range clients {
			if clients[i].ID != id {
				continue
			}
			if !s.canManage(actor, clients[i]) {
				return nil, apperrors.NewForbiddenError("Only the owner or the main admin can edit this client")
			}

			next := clients[i]
			applyPatch(&next, p)
			if err := validate(next); err != nil {
				return nil, err
			}
			if next.SubscriptionID != clients[i].SubscriptionID {
				if err := s.subscriptionExists(ctx, next.SubscriptionID); err != nil {
					return nil, err
				}
			}

			now := s.now()
			next.UpdatedAt = &now
			clients[i] = next
			updated = next
			return clients, nil
		}
		return nil, apperrors.NewResourceNotFoundError("client", id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, actor *models.User, id string) error {
	err := s.store.Clients.Update(ctx, func(clients []models.Client) ([]models.Client, error) {
		for i := range clients {
			if clients[i].ID != id {
				continue
			}
			if !s.canManage(actor, clients[i]) {
				return nil, apperrors.NewForbiddenError("Only the owner or the main admin can delete this client")
			}
			return append(clients[:i], clients[i+1:]...), nil
		}
		return nil, apperrors.NewResourceNotFoundError("client", id)
	})
	if err != nil {
		return err
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"client_id":  id,
		"deleted_by": actor.ID,
	}).Info("Client deleted")
	return nil
}

// List returns every client with its recommendation counters and whether
// actor has access to it.
func (s *Service) List(ctx context.Context, actor *models.User) ([]models.ClientSummary, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can list clients")
	}

	clients, err := s.store.Clients.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.counts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.ClientSummary, 0, len(clients))
	for _, c := range clients {
		out = append(out, summarize(c, counts[c.ID], s.access.HasAccessToClient(ctx, actor, c.ID)))
	}
	return out, nil
}

// Get returns one client to an admin with access to it.
func (s *Service) Get(ctx context.Context, actor *models.User, id string) (*models.ClientSummary, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can view clients")
	}
	c, err := s.store.Clients.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.access.HasAccessToClient(ctx, actor, id) {
		return nil, apperrors.NewForbiddenError("Request access to view this client")
	}

	counts, err := s.counts(ctx)
	if err != nil {
		return nil, err
	}
	summary := summarize(c, counts[id], true)
	return &summary, nil
}

func (s *Service) canManage(actor *models.User, c models.Client) bool {
	if !actor.IsAdmin() {
		return false
	}
	return s.access.IsMainAdmin(actor) || c.OwnerID == actor.ID
}

func (s *Service) counts(ctx context.Context) (map[string]recommendation.Counts, error) {
	recs, err := s.store.Recommendations.List(ctx)
	if err != nil {
		return nil, err
	}
	return recommendation.CountByClient(recs), nil
}

// subscriptionExists is called while holding the clients lock, which
// always comes before the subscriptions lock.
func (s *Service) subscriptionExists(ctx context.Context, id string) error {
	_, err := s.store.Subscriptions.Get(ctx, id)
	return err
}

// loginID finds a client-role user with email whose id no client record
// uses yet.
func (s *Service) loginID(ctx context.Context, email string) (string, bool) {
	if email == "" {
		return "", false
	}
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return "", false
	}
	for _, u := range users {
		if u.Role != models.RoleClient || !strings.EqualFold(u.Email, email) {
			continue
		}
		if _, err := s.store.Clients.Get(ctx, u.ID); err == nil {
			return "", false
		}
		return u.ID, true
	}
	return "", false
}

func summarize(c models.Client, n recommendation.Counts, hasAccess bool) models.ClientSummary {
	return models.ClientSummary{
		Client:                      c,
		RecommendationsAssigned:     n.Assigned,
		RecommendationsAcknowledged: n.Acknowledged,
		HasAccess:                   hasAccess,
	}
}

func applyPatch(c *models.Client, p Patch) {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		c.Email = strings.TrimSpace(*p.Email)
	}
	if p.Phone != nil {
		c.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Status != nil {
		c.Status = models.ClientStatus(*p.Status)
	}
	if p.SubscriptionID != nil {
		c.SubscriptionID = *p.SubscriptionID
	}
}

func validate(c models.Client) error {
	v := validator.New()
	v.Required("name", c.Name)
	v.MaxLength("name", c.Name, 100)
	v.Required("email", c.Email)
	if c.Email != "" {
		v.ValidateEmail(c.Email)
	}
	v.ValidatePhone(c.Phone)
	v.OneOf("status", string(c.Status), string(models.ClientActive), string(models.ClientInactive))
	return v.Err("Invalid client")
}
