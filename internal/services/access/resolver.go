package access

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/notify"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

// Rule names the grant that decided an access check.
type Rule string

const (
	RuleMainAdmin       Rule = "main_admin"
	RuleOwner           Rule = "owner"
	RuleApprovedRequest Rule = "approved_request"
	RuleNone            Rule = "none"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Rule      Rule   `json:"rule"`
	RequestID string `json:"requestId,omitempty"`
}

// Recorder receives access metrics.
type Recorder interface {
	ObserveAccessDecision(rule string, allowed bool)
	ObserveAccessRequest(status string)
}

// Resolver decides who may see and change client records and runs the
// access request workflow.
type Resolver struct {
	store    *repository.Store
	log      *logger.Logger
	recorder Recorder
	notifier notify.Publisher
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the time source used to stamp requests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithRecorder reports decisions and request outcomes to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// WithNotifier publishes request and resolution notifications to p.
func WithNotifier(p notify.Publisher) Option {
	return func(r *Resolver) { r.notifier = p }
}

// NewResolver creates a resolver over store that publishes nowhere until
// WithNotifier is given.
func NewResolver(store *repository.Store, log *logger.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		log:      log,
		notifier: notify.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) IsMainAdmin(actor *models.User) bool {
	return actor != nil && actor.IsMainAdmin
}

// OwnerOf returns the owning admin of a client, or "" when the client is
// unknown or the collection cannot be read.
func (r *Resolver) OwnerOf(ctx context.Context, clientID string) string {
	client, err := r.store.Clients.Get(ctx, clientID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			r.log.WithContext(ctx).WithFields(map[string]interface{}{
				"client_id": clientID,
				"error":     err.Error(),
			}).Error("Owner lookup failed")
		}
		return ""
	}
	return client.OwnerID
}

// HasAccessToClient is Decide reduced to its verdict.
func (r *Resolver) HasAccessToClient(ctx context.Context, actor *models.User, clientID string) bool {
	return r.Decide(ctx, actor, clientID).Allowed
}

// Decide evaluates, against the current store, whether actor may act on
// clientID: main admin, then owner, then an approved request.
func (r *Resolver) Decide(ctx context.Context, actor *models.User, clientID string) Decision {
	d := r.decide(ctx, actor, clientID)

	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	r.log.WithContext(ctx).LogAccessDecision(actorID, clientID, string(d.Rule), d.Allowed)
	if r.recorder != nil {
		r.recorder.ObserveAccessDecision(string(d.Rule), d.Allowed)
	}
	return d
}

func (r *Resolver) decide(ctx context.Context, actor *models.User, clientID string) Decision {
	if actor == nil {
		return Decision{Rule: RuleNone}
	}
	if r.IsMainAdmin(actor) {
		return Decision{Allowed: true, Rule: RuleMainAdmin}
	}
	if owner := r.OwnerOf(ctx, clientID); owner != "" && owner == actor.ID {
		return Decision{Allowed: true, Rule: RuleOwner}
	}

	for _, req := range r.requests(ctx) {
		if req.RequesterID == actor.ID && req.ClientID == clientID && req.Status == models.AccessApproved {
			return Decision{Allowed: true, Rule: RuleApprovedRequest, RequestID: req.ID}
		}
	}
	return Decision{Rule: RuleNone}
}

// requests reads the access request collection, treating a failed read
// as empty.
func (r *Resolver) requests(ctx context.Context) []models.AccessRequest {
	requests, err := r.store.AccessRequests.List(ctx)
	if err != nil {
		r.log.WithContext(ctx).WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Access request lookup failed")
		return nil
	}
	return requests
}

// RequestClientAccess files a pending request for actor on clientID.
// Existing access is not checked; only a pending duplicate is refused.
func (r *Resolver) RequestClientAccess(ctx context.Context, actor *models.User, clientID, clientName string) (*models.AccessRequest, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.NewForbiddenError("Only admins can request client access")
	}

	client, err := r.store.Clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if clientName == "" {
		clientName = client.Name
	}

	req := models.AccessRequest{
		ID:            "req-" + uuid.NewString(),
		RequesterID:   actor.ID,
		RequesterName: actor.Name,
		ClientID:      clientID,
		ClientName:    clientName,
		Status:        models.AccessPending,
		RequestDate:   r.now(),
	}

	err = r.store.AccessRequests.Update(ctx, func(requests []models.AccessRequest) ([]models.AccessRequest, error) {
		for _, existing := range requests {
			if existing.RequesterID == actor.ID && existing.ClientID == clientID && existing.Status == models.AccessPending {
				return nil, apperrors.NewDuplicateRequestError(actor.ID, clientID)
			}
		}
		return append(requests, req), nil
	})
	r.log.WithContext(ctx).LogAccessRequest(req.ID, "create", err)
	if err != nil {
		return nil, err
	}

	r.observe(req.Status)
	r.notifier.Publish(notify.Notification{
		Type:       notify.TypeAccessRequested,
		Message:    actor.Name + " requested access to " + clientName,
		Recipients: []string{client.OwnerID},
		Payload:    req,
	})
	return &req, nil
}

// ApproveAccessRequest grants the requester access to the client.
func (r *Resolver) ApproveAccessRequest(ctx context.Context, caller *models.User, requestID string) (*models.AccessRequest, error) {
	return r.resolve(ctx, caller, requestID, models.AccessApproved)
}

// RejectAccessRequest closes the request without granting access.
func (r *Resolver) RejectAccessRequest(ctx context.Context, caller *models.User, requestID string) (*models.AccessRequest, error) {
	return r.resolve(ctx, caller, requestID, models.AccessRejected)
}

// resolve moves a pending request to its final status. Only the main
// admin or the owner of the requested client may do so, exactly once.
func (r *Resolver) resolve(ctx context.Context, caller *models.User, requestID string, status models.AccessRequestStatus) (*models.AccessRequest, error) {
	if caller == nil {
		return nil, apperrors.NewForbiddenError("")
	}

	current, err := r.store.AccessRequests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsMainAdmin(caller) && r.OwnerOf(ctx, current.ClientID) != caller.ID {
		return nil, apperrors.NewForbiddenError("Only the client owner or the main admin can resolve this request")
	}

	var resolved models.AccessRequest
	err = r.store.AccessRequests.Update(ctx, func(requests []models.AccessRequest) ([]models.AccessRequest, error) {
		for i := range requests {
			if requests[i].ID != requestID {
				continue
			}
			if requests[i].Status != models.AccessPending {
				return nil, apperrors.NewInvalidStateError("Access request is already " + string(requests[i].Status))
			}
			now := r.now()
			requests[i].Status = status
			requests[i].ResolvedAt = &now
			requests[i].ResolvedBy = caller.ID
			resolved = requests[i]
			return requests, nil
		}
		return nil, apperrors.NewResourceNotFoundError("access request", requestID)
	})
	r.log.WithContext(ctx).LogAccessRequest(requestID, string(status), err)
	if err != nil {
		return nil, err
	}

	r.observe(status)
	r.notifier.Publish(notify.Notification{
		Type:       notify.TypeAccessResolved,
		Message:    "Access to " + resolved.ClientName + " was " + string(status),
		Recipients: []string{resolved.RequesterID},
		Payload:    resolved,
	})
	return &resolved, nil
}

// GetPendingRequests lists the pending requests actor may resolve: all of
// them for the main admin, those on owned clients for other admins.
func (r *Resolver) GetPendingRequests(ctx context.Context, actor *models.User) []models.AccessRequest {
	out := []models.AccessRequest{}
	if !actor.IsAdmin() {
		return out
	}

	requests := r.requests(ctx)
	if r.IsMainAdmin(actor) {
		for _, req := range requests {
			if req.Status == models.AccessPending {
				out = append(out, req)
			}
		}
		return out
	}

	owned := r.ownedClients(ctx, actor.ID)
	for _, req := range requests {
		if req.Status == models.AccessPending && owned[req.ClientID] {
			out = append(out, req)
		}
	}
	return out
}

// RequestsBy lists every request actor has filed, in filing order.
func (r *Resolver) RequestsBy(ctx context.Context, actor *models.User) []models.AccessRequest {
	out := []models.AccessRequest{}
	if actor == nil {
		return out
	}
	for _, req := range r.requests(ctx) {
		if req.RequesterID == actor.ID {
			out = append(out, req)
		}
	}
	return out
}

func (r *Resolver) ownedClients(ctx context.Context, ownerID string) map[string]bool {
	owned := make(map[string]bool)
	clients, err := r.store.Clients.List(ctx)
	if err != nil {
		r.log.WithContext(ctx).WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Client lookup failed")
		return owned
	}
	for _, c := range clients {
		if c.OwnerID == ownerID {
			owned[c.ID] = true
		}
	}
	return owned
}

func (r *Resolver) observe(status models.AccessRequestStatus) {
	if r.recorder != nil {
		r.recorder.ObserveAccessRequest(string(status))
	}
}
