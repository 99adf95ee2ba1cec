package recommendation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/notify"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

type capture struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (c *capture) Publish(n notify.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
}

type ackCounter struct{ n int }

func (a *ackCounter) ObserveAcknowledgment() { a.n++ }

var (
	admin  = &models.User{ID: "a1", Name: "Alice", Role: models.RoleAdmin}
	client = &models.User{ID: "c1", Name: "Cara", Role: models.RoleClient}
)

func setup(t *testing.T) (*Service, *repository.Store, *capture, *ackCounter) {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore(logger.NewNop())
	require.NoError(t, store.Seed(ctx, time.Now()))
	require.NoError(t, store.Subscriptions.Put(ctx, models.Subscription{ID: "gold", Name: "Gold"}))
	for _, c := range []models.Client{
		{ID: "c1", Name: "Cara", SubscriptionID: "gold", OwnerID: "a1"},
		{ID: "c2", Name: "Dev", SubscriptionID: "default", OwnerID: "a1"},
		{ID: "c3", Name: "Eli", SubscriptionID: "default", OwnerID: "a2"},
	} {
		require.NoError(t, store.Clients.Put(ctx, c))
	}

	sink := &capture{}
	acks := &ackCounter{}
	svc := NewService(store, logger.NewNop(), WithNotifier(sink), WithRecorder(acks),
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }))
	return svc, store, sink, acks
}

func draft() Draft {
	return Draft{
		Title:      "Buy INFY",
		Type:       "Equity",
		Instrument: "INFY",
		EntryPrice: decimal.RequireFromString("1500.50"),
		StopLoss:   decimal.RequireFromString("1450"),
		Targets: []models.Target{
			{Price: decimal.RequireFromString("1600")},
			{Price: decimal.RequireFromString("1700")},
		},
	}
}

func TestCreateAssignsDefaultMembersAndExplicitClients(t *testing.T) {
	svc, _, sink, _ := setup(t)
	d := draft()
	d.ClientIDs = []string{"c1"}

	rec, err := svc.Create(context.Background(), admin, d)
	require.NoError(t, err)

	assert.Equal(t, []string{"default"}, rec.SubscriptionIDs)
	assert.Equal(t, []string{"c1", "c2", "c3"}, rec.ClientsAssigned)
	assert.Empty(t, rec.ClientsAcknowledged)
	assert.Equal(t, models.RecommendationActive, rec.Status)
	assert.Equal(t, models.SegmentEquity, rec.Type)
	assert.Equal(t, "Short-term", rec.Targets[0].Timeframe)
	assert.Equal(t, "Medium-term", rec.Targets[1].Timeframe)
	assert.NotEmpty(t, rec.Targets[0].ID)
	assert.Equal(t, "a1", rec.CreatedBy)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, notify.TypeRecommendationCreated, sink.sent[0].Type)
	assert.Equal(t, append(append([]string(nil), rec.ClientsAssigned...), notify.RecipientAdmins), sink.sent[0].Recipients)
}

func TestCreateNewestFirst(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, admin, draft())
	require.NoError(t, err)
	d := draft()
	d.Title = "Sell TCS"
	second, err := svc.Create(ctx, admin, d)
	require.NoError(t, err)

	recs, err := svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, second.ID, recs[0].ID)
	assert.Equal(t, first.ID, recs[1].ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	t.Run("clients cannot create", func(t *testing.T) {
		_, err := svc.Create(ctx, client, draft())
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Create(ctx, admin, Draft{Type: "Crypto"})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		appErr := apperrors.FromError(err)
		fields := appErr.Details["validation_errors"].(map[string]string)
		assert.Contains(t, fields, "title")
		assert.Contains(t, fields, "type")
		assert.Contains(t, fields, "entryPrice")
		assert.Contains(t, fields, "targets")
	})

	t.Run("options need strike and option type", func(t *testing.T) {
		d := draft()
		d.Type = "Options"
		_, err := svc.Create(ctx, admin, d)
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		strike := decimal.RequireFromString("1550")
		d.StrikePrice = &strike
		d.OptionType = "CE"
		rec, err := svc.Create(ctx, admin, d)
		require.NoError(t, err)
		assert.Equal(t, models.OptionCall, rec.OptionType)
	})

	t.Run("strike is dropped for non options", func(t *testing.T) {
		d := draft()
		strike := decimal.RequireFromString("1550")
		d.StrikePrice = &strike
		rec, err := svc.Create(ctx, admin, d)
		require.NoError(t, err)
		assert.Nil(t, rec.StrikePrice)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		d := draft()
		d.SubscriptionIDs = []string{"platinum"}
		_, err := svc.Create(ctx, admin, d)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("unknown explicit client", func(t *testing.T) {
		d := draft()
		d.ClientIDs = []string{"ghost"}
		_, err := svc.Create(ctx, admin, d)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestAssignmentIsNotRetroactive(t *testing.T) {
	svc, store, _, _ := setup(t)
	ctx := context.Background()

	d := draft()
	d.SubscriptionIDs = []string{"gold"}
	rec, err := svc.Create(ctx, admin, d)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, rec.ClientsAssigned)

	moved, err := store.Clients.Get(ctx, "c2")
	require.NoError(t, err)
	moved.SubscriptionID = "gold"
	require.NoError(t, store.Clients.Put(ctx, moved))

	after, err := svc.Get(ctx, admin, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, after.ClientsAssigned)
}

func TestVisibility(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	d := draft()
	d.SubscriptionIDs = []string{"gold"}
	goldRec, err := svc.Create(ctx, admin, d)
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, draft())
	require.NoError(t, err)

	otherAdmin := &models.User{ID: "a2", Role: models.RoleAdmin}
	all, err := svc.List(ctx, otherAdmin)
	require.NoError(t, err)
	assert.Len(t, all, 2, "admins see every recommendation")

	mine, err := svc.List(ctx, client)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, goldRec.ID, mine[0].ID)

	dev := &models.User{ID: "c2", Role: models.RoleClient}
	_, err = svc.Get(ctx, dev, goldRec.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestAcknowledgeByClient(t *testing.T) {
	svc, _, sink, acks := setup(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, admin, draft())
	require.NoError(t, err)
	recID := rec.ID

	dev := &models.User{ID: "c2", Name: "Dev", Role: models.RoleClient}
	for i := 0; i < 2; i++ {
		got, err := svc.AcknowledgeByClient(ctx, dev, recID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c2"}, got.ClientsAcknowledged)
	}
	assert.Equal(t, 1, acks.n)
	assert.Equal(t, notify.TypeAcknowledged, sink.sent[len(sink.sent)-1].Type)

	_, err = svc.AcknowledgeByClient(ctx, client, recID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "c1 is not a default member")

	_, err = svc.AcknowledgeByClient(ctx, admin, recID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.AcknowledgeByClient(ctx, dev, "rec-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, admin, draft())
	require.NoError(t, err)
	dev := &models.User{ID: "c2", Role: models.RoleClient}
	eli := &models.User{ID: "c3", Role: models.RoleClient}
	_, err = svc.AcknowledgeByClient(ctx, dev, rec.ID)
	require.NoError(t, err)
	_, err = svc.AcknowledgeByClient(ctx, eli, rec.ID)
	require.NoError(t, err)

	t.Run("plain field edit keeps assignment", func(t *testing.T) {
		title := "Buy INFY on dips"
		updated, err := svc.Update(ctx, admin, rec.ID, Patch{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
		assert.Equal(t, rec.ClientsAssigned, updated.ClientsAssigned)
		assert.Equal(t, []string{"c2", "c3"}, updated.ClientsAcknowledged)
		require.NotNil(t, updated.LastUpdated)
	})

	t.Run("reassignment keeps clients that acknowledged", func(t *testing.T) {
		updated, err := svc.Update(ctx, admin, rec.ID, Patch{
			SubscriptionIDs: []string{"gold"},
			ClientIDs:       []string{"c2"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"gold"}, updated.SubscriptionIDs)
		assert.Equal(t, []string{"c2", "c1", "c3"}, updated.ClientsAssigned)
		assert.Equal(t, []string{"c2", "c3"}, updated.ClientsAcknowledged)
	})

	t.Run("invalid patch", func(t *testing.T) {
		status := "Open"
		_, err := svc.Update(ctx, admin, rec.ID, Patch{Status: &status})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.Update(ctx, admin, "rec-missing", Patch{})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("clients cannot edit", func(t *testing.T) {
		_, err := svc.Update(ctx, dev, rec.ID, Patch{})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestDelete(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, admin, draft())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, client, rec.ID), apperrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, rec.ID))
	assert.ErrorIs(t, svc.Delete(ctx, admin, rec.ID), apperrors.ErrNotFound)

	recs, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestUpdateAppliesPatchToStoredRecord(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, admin, draft())
	require.NoError(t, err)
	_, err = svc.AcknowledgeByClient(ctx, &models.User{ID: "c2", Role: models.RoleClient}, rec.ID)
	require.NoError(t, err)

	title := "Buy INFY on dips"
	desc := "Accumulate below 1480"
	var wg sync.WaitGroup
	for _, p := range []Patch{{Title: &title}, {Description: &desc}} {
		wg.Add(1)
		go func(p Patch) {
			defer wg.Done()
			_, err := svc.Update(ctx, admin, rec.ID, p)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := svc.Get(ctx, admin, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, desc, got.Description)
	assert.Equal(t, []string{"c2"}, got.ClientsAcknowledged)
}

func TestReassignAfterSubscriptionDeleted(t *testing.T) {
	svc, store, _, _ := setup(t)
	ctx := context.Background()

	d := draft()
	d.SubscriptionIDs = []string{"gold"}
	rec, err := svc.Create(ctx, admin, d)
	require.NoError(t, err)
	require.NoError(t, store.Subscriptions.Delete(ctx, "gold"))

	updated, err := svc.Update(ctx, admin, rec.ID, Patch{ClientIDs: []string{"c3"}})
	require.NoError(t, err)
	assert.Equal(t, []string{models.DefaultSubscriptionID}, updated.SubscriptionIDs)
	assert.Equal(t, []string{"c3", "c2"}, updated.ClientsAssigned)
}

func TestNotificationsNeverReachEveryone(t *testing.T) {
	svc, store, sink, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Clients.Delete(ctx, "c1"))

	d := draft()
	d.SubscriptionIDs = []string{"gold"}
	rec, err := svc.Create(ctx, admin, d)
	require.NoError(t, err)
	assert.Empty(t, rec.ClientsAssigned)

	title := "Renamed"
	_, err = svc.Update(ctx, admin, rec.ID, Patch{Title: &title})
	require.NoError(t, err)

	require.Len(t, sink.sent, 2)
	for _, n := range sink.sent {
		assert.Equal(t, []string{notify.RecipientAdmins}, n.Recipients)
	}
}
