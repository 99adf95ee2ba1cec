package repository

import (
	"context"
	"time"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
)

// Backend keys of the five collections.
const (
	UsersKey           = "users"
	ClientsKey         = "clients"
	RecommendationsKey = "recommendations"
	SubscriptionsKey   = "subscriptions"
	AccessRequestsKey  = "accessRequests"
)

// Store groups the collections every service works on.
//
// A MutateFn may read another collection only in this lock order:
// Recommendations, then Clients, then Subscriptions. Users and
// AccessRequests are never read from inside another collection's Update.
type Store struct {
	Users           Repository[models.User]
	Clients         Repository[models.Client]
	Recommendations Repository[models.Recommendation]
	Subscriptions   Repository[models.Subscription]
	AccessRequests  Repository[models.AccessRequest]

	users           *Collection[models.User]
	clients         *Collection[models.Client]
	recommendations *Collection[models.Recommendation]
	subscriptions   *Collection[models.Subscription]
	accessRequests  *Collection[models.AccessRequest]

	backend Backend
	log     *logger.Logger
}

type StoreOption func(*Store)

// WithObserver reports backend call timings to o.
func WithObserver(o Observer) StoreOption {
	return func(s *Store) {
		s.users.observer = o
		s.clients.observer = o
		s.recommendations.observer = o
		s.subscriptions.observer = o
		s.accessRequests.observer = o
	}
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.users.timeout = d
		s.clients.timeout = d
		s.recommendations.timeout = d
		s.subscriptions.timeout = d
		s.accessRequests.timeout = d
	}
}

func NewStore(backend Backend, log *logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		users: NewCollection(UsersKey, "user", backend,
			func(u models.User) string { return u.ID }, log),
		clients: NewCollection(ClientsKey, "client", backend,
			func(c models.Client) string { return c.ID }, log),
		recommendations: NewCollection(RecommendationsKey, "recommendation", backend,
			func(r models.Recommendation) string { return r.ID }, log),
		subscriptions: NewCollection(SubscriptionsKey, "subscription", backend,
			func(s models.Subscription) string { return s.ID }, log),
		accessRequests: NewCollection(AccessRequestsKey, "access request", backend,
			func(r models.AccessRequest) string { return r.ID }, log),
		backend: backend,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Users = s.users
	s.Clients = s.clients
	s.Recommendations = s.recommendations
	s.Subscriptions = s.subscriptions
	s.AccessRequests = s.accessRequests
	return s
}

// NewMemoryStore returns a store over a fresh MemoryBackend.
func NewMemoryStore(log *logger.Logger) *Store {
	return NewStore(NewMemoryBackend(), log)
}

// Seed creates every collection that has never been written. The
// subscription collection starts with the default subscription.
func (s *Store) Seed(ctx context.Context, now time.Time) error {
	defaultSub := models.Subscription{
		ID:          models.DefaultSubscriptionID,
		Name:        "Default",
		Description: "Default subscription",
		CreatedAt:   now,
	}

	seeded := make([]string, 0, 5)
	steps := []struct {
		key string
		run func() (bool, error)
	}{
		{UsersKey, func() (bool, error) { return s.users.Seed(ctx, nil) }},
		{ClientsKey, func() (bool, error) { return s.clients.Seed(ctx, nil) }},
		{RecommendationsKey, func() (bool, error) { return s.recommendations.Seed(ctx, nil) }},
		{SubscriptionsKey, func() (bool, error) {
			return s.subscriptions.Seed(ctx, []models.Subscription{defaultSub})
		}},
		{AccessRequestsKey, func() (bool, error) { return s.accessRequests.Seed(ctx, nil) }},
	}
	for _, step := range steps {
		created, err := step.run()
		if err != nil {
			return err
		}
		if created {
			seeded = append(seeded, step.key)
		}
	}

	if len(seeded) > 0 {
		s.log.WithFields(map[string]interface{}{
			"backend":     s.backend.Name(),
			"collections": seeded,
		}).Info("Seeded empty collections")
	}
	return nil
}

func (s *Store) BackendName() string { return s.backend.Name() }

func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

func (s *Store) Close() error { return s.backend.Close() }
