package recommendation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/notify"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
	"github.com/Cryptoprojectsfun/advisorhub/internal/validator"
)

// Draft is the input for a new recommendation. ClientIDs are assigned
// explicitly on top of the members of every subscription.
type Draft struct {
	Title           string           `json:"title"`
	Type            string           `json:"type"`
	Description     string           `json:"description"`
	Instrument      string           `json:"instrument"`
	StrikePrice     *decimal.Decimal `json:"strikePrice"`
	OptionType      string           `json:"optionType"`
	EntryPrice      decimal.Decimal  `json:"entryPrice"`
	StopLoss        decimal.Decimal  `json:"stopLoss"`
	Targets         []models.Target  `json:"targets"`
	Status          string           `json:"status"`
	SubscriptionIDs []string         `json:"subscriptionIds"`
	ClientIDs       []string         `json:"clientIds"`
}

// Patch changes the fields that are set. Assignment is recomputed when
// SubscriptionIDs or ClientIDs are present.
type Patch struct {
	Title           *string          `json:"title"`
	Type            *string          `json:"type"`
	Description     *string          `json:"description"`
	Instrument      *string          `json:"instrument"`
	StrikePrice     *decimal.Decimal `json:"strikePrice"`
	OptionType      *string          `json:"optionType"`
	EntryPrice      *decimal.Decimal `json:"entryPrice"`
	StopLoss        *decimal.Decimal `json:"stopLoss"`
	Targets         []models.Target  `json:"targets"`
	Status          *string          `json:"status"`
	SubscriptionIDs []string         `json:"subscriptionIds"`
	ClientIDs       []string         `json:"clientIds"`
}

// Recorder receives acknowledgment metrics.
type Recorder interface {
	ObserveAcknowledgment()
}

type Service struct {
	store    *repository.Store
	log      *logger.Logger
	notifier notify.Publisher
	recorder Recorder
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(p notify.Publisher) Option {
	return func(s *Service) { s.notifier = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(store *repository.Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		log:      log,
		notifier: notify.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new recommendation, newest first, with its assignment
// computed from the current client list.
func (s *Service) Create(ctx context.Context, actor *models.User, d Draft) (*models.Recommendation, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can create recommendations")
	}

	if len(d.SubscriptionIDs) == 0 {
		d.SubscriptionIDs = []string{models.DefaultSubscriptionID}
	}
	if d.Status == "" {
		d.Status = string(models.RecommendationActive)
	}

	rec := models.Recommendation{
		ID:                  "rec-" + uuid.NewString(),
		Title:               d.Title,
		Description:         d.Description,
		Instrument:          d.Instrument,
		StrikePrice:         d.StrikePrice,
		OptionType:          models.OptionType(d.OptionType),
		EntryPrice:          d.EntryPrice,
		StopLoss:            d.StopLoss,
		Targets:             append([]models.Target(nil), d.Targets...),
		Status:              models.RecommendationStatus(d.Status),
		CreatedBy:           actor.ID,
		CreatedAt:           s.now(),
		SubscriptionIDs:     dedupe(d.SubscriptionIDs),
		ClientsAcknowledged: []string{},
	}
	if err := s.normalize(&rec, d.Type); err != nil {
		return nil, err
	}

	clients, err := s.assignable(ctx, rec.SubscriptionIDs, d.ClientIDs)
	if err != nil {
		return nil, err
	}
	rec.ClientsAssigned = AssignAcross(rec.SubscriptionIDs, d.ClientIDs, clients)

	err = s.store.Recommendations.Update(ctx, func(recs []models.Recommendation) ([]models.Recommendation, error) {
		return append([]models.Recommendation{rec}, recs...), nil
	})
	s.log.WithContext(ctx).LogRecommendationOperation(rec.ID, "create", len(rec.ClientsAssigned), err)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Notification{
		Type:       notify.TypeRecommendationCreated,
		Message:    "New recommendation: " + rec.Title,
		Recipients: recipients(rec),
		Payload:    rec,
	})
	return &rec, nil
}

// Update applies patch to the stored recommendation and stamps
// lastUpdated. A client that acknowledged it stays assigned, so
// acknowledgments are never lost.
func (s *Service) Update(ctx context.Context, actor *models.User, id string, p Patch) (*models.Recommendation, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can update recommendations")
	}

	var updated models.Recommendation
	err := s.store.Recommendations.Update(ctx, func(recs []models.Recommendation) ([]models.Recommendation, error) {
		for i := range recs {
			if recs[i].ID != id {
				continue
			}
			next, err := s.patched(ctx, recs[i], p)
			if err != nil {
				return nil, err
			}
			recs[i] = next
			updated = next
			return recs, nil
		}
		return nil, apperrors.NewResourceNotFoundError("recommendation", id)
	})
	s.log.WithContext(ctx).LogRecommendationOperation(id, "update", len(updated.ClientsAssigned), err)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Notification{
		Type:       notify.TypeRecommendationUpdated,
		Message:    "Recommendation updated: " + updated.Title,
		Recipients: recipients(updated),
		Payload:    updated,
	})
	return &updated, nil
}

// patched returns current with p applied. It runs under the
// recommendations lock and reads clients and subscriptions.
func (s *Service) patched(ctx context.Context, current models.Recommendation, p Patch) (models.Recommendation, error) {
	next := current
	next.SubscriptionIDs = append([]string(nil), current.SubscriptionIDs...)
	next.ClientsAssigned = append([]string(nil), current.ClientsAssigned...)
	next.ClientsAcknowledged = append([]string(nil), current.ClientsAcknowledged...)

	segment := string(current.Type)
	if p.Type != nil {
		segment = *p.Type
	}
	applyPatch(&next, p)
	if err := s.normalize(&next, segment); err != nil {
		return current, err
	}

	if p.SubscriptionIDs != nil || p.ClientIDs != nil {
		var subs []string
		if p.SubscriptionIDs != nil {
			subs = dedupe(p.SubscriptionIDs)
		} else {
			// Stored ids may name subscriptions deleted since.
			known, err := s.existingSubscriptions(ctx, current.SubscriptionIDs)
			if err != nil {
				return current, err
			}
			subs = known
		}
		if len(subs) == 0 {
			subs = []string{models.DefaultSubscriptionID}
		}
		explicit := current.ClientsAssigned
		if p.ClientIDs != nil {
			explicit = p.ClientIDs
		}

		clients, err := s.assignable(ctx, subs, p.ClientIDs)
		if err != nil {
			return current, err
		}
		next.SubscriptionIDs = subs
		next.ClientsAssigned = keepAcknowledged(AssignAcross(subs, explicit, clients), current.ClientsAcknowledged)
	}

	now := s.now()
	next.LastUpdated = &now
	return next, nil
}

// Delete removes the recommendation. Nothing else references it.
func (s *Service) Delete(ctx context.Context, actor *models.User, id string) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbiddenError("Only admins can delete recommendations")
	}
	err := s.store.Recommendations.Delete(ctx, id)
	s.log.WithContext(ctx).LogRecommendationOperation(id, "delete", 0, err)
	return err
}

// List returns the recommendations actor can see, newest first.
func (s *Service) List(ctx context.Context, actor *models.User) ([]models.Recommendation, error) {
	recs, err := s.store.Recommendations.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Recommendation, 0, len(recs))
	for i := range recs {
		if VisibleTo(&recs[i], actor) {
			out = append(out, recs[i])
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor *models.User, id string) (*models.Recommendation, error) {
	rec, err := s.store.Recommendations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !VisibleTo(&rec, actor) {
		return nil, apperrors.NewForbiddenError("Recommendation is not assigned to you")
	}
	return &rec, nil
}

// AcknowledgeByClient records that the calling client has seen the
// recommendation. Repeating it is harmless.
func (s *Service) AcknowledgeByClient(ctx context.Context, actor *models.User, id string) (*models.Recommendation, error) {
	if !actor.IsClient() {
		return nil, apperrors.NewForbiddenError("Only clients acknowledge recommendations")
	}

	var (
		rec     models.Recommendation
		changed bool
	)
	err := s.store.Recommendations.Update(ctx, func(recs []models.Recommendation) ([]models.Recommendation, error) {
		for i := range recs {
			if recs[i].ID != id {
				continue
			}
			if !recs[i].IsAssigned(actor.ID) {
				return nil, apperrors.NewForbiddenError("Recommendation is not assigned to you")
			}
			changed = Acknowledge(&recs[i], actor.ID)
			rec = recs[i]
			return recs, nil
		}
		return nil, apperrors.NewResourceNotFoundError("recommendation", id)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if s.recorder != nil {
			s.recorder.ObserveAcknowledgment()
		}
		s.notifier.Publish(notify.Notification{
			Type:       notify.TypeAcknowledged,
			Message:    actor.Name + " acknowledged " + rec.Title,
			Recipients: []string{rec.CreatedBy},
			Payload: map[string]string{
				"recommendationId": rec.ID,
				"clientId":         actor.ID,
			},
		})
	}
	return &rec, nil
}

// assignable loads the client list and checks that every referenced
// subscription and explicit client exists.
func (s *Service) assignable(ctx context.Context, subscriptionIDs, explicit []string) ([]models.Client, error) {
	subs, err := s.store.Subscriptions.List(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(subs))
	for _, sub := range subs {
		known[sub.ID] = true
	}
	for _, id := range subscriptionIDs {
		if !known[id] {
			return nil, apperrors.NewResourceNotFoundError("subscription", id)
		}
	}

	clients, err := s.store.Clients.List(ctx)
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(clients))
	for _, c := range clients {
		exists[c.ID] = true
	}
	for _, id := range explicit {
		if !exists[id] {
			return nil, apperrors.NewResourceNotFoundError("client", id)
		}
	}
	return clients, nil
}

// normalize validates rec, resolves its segment and labels its targets.
func (s *Service) normalize(rec *models.Recommendation, segment string) error {
	v := validator.New()
	v.Required("title", rec.Title)
	v.MaxLength("title", rec.Title, 200)

	seg, ok := models.ParseSegment(segment)
	v.Check(ok, "type", "must be one of: Equity, Futures, Options, Commodity, Currency, Stock")
	rec.Type = seg

	v.Positive("entryPrice", rec.EntryPrice)
	v.NonNegative("stopLoss", rec.StopLoss)
	v.Check(len(rec.Targets) > 0, "targets", "at least one target is required")
	for _, t := range rec.Targets {
		v.Check(t.Price.IsPositive(), "targets", "target prices must be greater than zero")
	}
	v.Check(rec.Status.Valid(), "status", "must be one of: Active, Closed")

	if seg == models.SegmentOptions {
		v.Check(rec.StrikePrice != nil && rec.StrikePrice.IsPositive(), "strikePrice", "is required for options")
		v.OneOf("optionType", string(rec.OptionType), string(models.OptionCall), string(models.OptionPut))
	} else {
		rec.StrikePrice = nil
		rec.OptionType = ""
	}

	if err := v.Err("Invalid recommendation"); err != nil {
		return err
	}

	for i := range rec.Targets {
		if rec.Targets[i].ID == "" {
			rec.Targets[i].ID = uuid.NewString()
		}
	}
	LabelTargets(rec.Targets)
	return nil
}

func applyPatch(rec *models.Recommendation, p Patch) {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.Instrument != nil {
		rec.Instrument = *p.Instrument
	}
	if p.StrikePrice != nil {
		rec.StrikePrice = p.StrikePrice
	}
	if p.OptionType != nil {
		rec.OptionType = models.OptionType(*p.OptionType)
	}
	if p.EntryPrice != nil {
		rec.EntryPrice = *p.EntryPrice
	}
	if p.StopLoss != nil {
		rec.StopLoss = *p.StopLoss
	}
	if p.Targets != nil {
		rec.Targets = append([]models.Target(nil), p.Targets...)
	}
	if p.Status != nil {
		rec.Status = models.RecommendationStatus(*p.Status)
	}
}

// existingSubscriptions filters ids down to subscriptions that still exist.
func (s *Service) existingSubscriptions(ctx context.Context, ids []string) ([]string, error) {
	subs, err := s.store.Subscriptions.List(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(subs))
	for _, sub := range subs {
		known[sub.ID] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// recipients addresses a recommendation to its assigned clients and the
// admins. The list is never empty, so it never reaches everyone.
func recipients(rec models.Recommendation) []string {
	out := make([]string, 0, len(rec.ClientsAssigned)+1)
	out = append(out, rec.ClientsAssigned...)
	return append(out, notify.RecipientAdmins)
}

func dedupe(ids []string) []string {
	return ComputeAssignedClients("", ids, nil)
}
