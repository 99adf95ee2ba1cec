package subscription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
	"github.com/Cryptoprojectsfun/advisorhub/internal/validator"
)

type Input struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Service struct {
	store *repository.Store
	log   *logger.Logger
	now   func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *repository.Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]models.Subscription, error) {
	return s.store.Subscriptions.List(ctx)
}

func (s *Service) Create(ctx context.Context, actor *models.User, in Input) (*models.Subscription, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can manage subscriptions")
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	sub := models.Subscription{
		ID:          "sub-" + uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CreatedAt:   s.now(),
	}
	if err := s.store.Subscriptions.Put(ctx, sub); err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"subscription_id": sub.ID,
		"created_by":      actor.ID,
	}).Info("Subscription created")
	return &sub, nil
}

func (s *Service) Update(ctx context.Context, actor *models.User, id string, in Input) (*models.Subscription, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can manage subscriptions")
	}
	if id == models.DefaultSubscriptionID {
		return nil, apperrors.NewForbiddenError("The default subscription cannot be changed")
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	var updated models.Subscription
	err := s.store.Subscriptions.Update(ctx, func(subs []models.Subscription) ([]models.Subscription, error) {
		for i := range subs {
			if subs[i].ID == id {
				subs[i].Name = strings.TrimSpace(in.Name)
				subs[i].Description = in.Description
				updated = subs[i]
				return subs, nil
			}
		}
		return nil, apperrors.NewResourceNotFoundError("subscription", id)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete moves every client of the subscription to the default one and
// removes it in one step. Recommendations keep their assignment.
func (s *Service) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbiddenError("Only admins can manage subscriptions")
	}
	if id == models.DefaultSubscriptionID {
		return apperrors.NewForbiddenError("The default subscription cannot be deleted")
	}
	// Holding the clients lock across the delete keeps any client from
	// joining the subscription between the cascade and the removal.
	moved := 0
	now := s.now()
	err := s.store.Clients.Update(ctx, func(clients []models.Client) ([]models.Client, error) {
		for i := range clients {
			if clients[i].SubscriptionID == id {
				clients[i].SubscriptionID = models.DefaultSubscriptionID
				clients[i].UpdatedAt = &now
				moved++
			}
		}
		if err := s.store.Subscriptions.Delete(ctx, id); err != nil {
			return nil, err
		}
		return clients, nil
	})
	if err != nil {
		return err
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"subscription_id": id,
		"clients_moved":   moved,
		"deleted_by":      actor.ID,
	}).Info("Subscription deleted")
	return nil
}

func validate(in Input) error {
	v := validator.New()
	v.Required("name", in.Name)
	v.MaxLength("name", in.Name, 100)
	v.MaxLength("description", in.Description, 1000)
	return v.Err("Invalid subscription")
}
