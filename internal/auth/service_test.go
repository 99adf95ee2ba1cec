package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

type fixture struct {
	svc   *Service
	store *repository.Store
	main  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore(logger.NewNop())
	require.NoError(t, store.Seed(ctx, time.Now()))

	svc := NewService(store, NewSessionStore(), NewJWTManager("secret", time.Minute, time.Hour),
		logger.NewNop(), WithBcryptCost(bcrypt.MinCost))

	main, created, err := svc.EnsureMainAdmin(ctx, "Sayanth", "sayanth@example.com", "41421014")
	require.NoError(t, err)
	require.True(t, created)

	return &fixture{svc: svc, store: store, main: main}
}

func TestEnsureMainAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)

	again, created, err := f.svc.EnsureMainAdmin(context.Background(), "Other", "other@example.com", "pw")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.main.ID, again.ID)
	assert.Empty(t, again.PasswordHash)

	users, err := f.store.Users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.NotEqual(t, "41421014", users[0].PasswordHash, "passwords are stored hashed")
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("valid credentials", func(t *testing.T) {
		res, err := f.svc.Login(ctx, "", "sayanth@example.com", "41421014")
		require.NoError(t, err)
		assert.True(t, res.User.IsMainAdmin)
		assert.Empty(t, res.User.PasswordHash)
		assert.NotEmpty(t, res.SessionID)
		assert.Equal(t, StateLoggedIn, f.svc.Sessions().State(res.SessionID))

		actor, claims, err := f.svc.Authenticate(res.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, f.main.ID, actor.ID)
		assert.Equal(t, res.SessionID, claims.SessionID)
	})

	t.Run("wrong password leaves session logged out", func(t *testing.T) {
		_, err := f.svc.Login(ctx, "s-bad", "sayanth@example.com", "nope")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		assert.Equal(t, StateLoggedOut, f.svc.Sessions().State("s-bad"))
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.Login(ctx, "", "ghost@example.com", "41421014")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("concurrent attempt on the same session", func(t *testing.T) {
		require.NoError(t, f.svc.Sessions().Begin("busy"))
		_, err := f.svc.Login(ctx, "busy", "sayanth@example.com", "41421014")
		assert.ErrorIs(t, err, apperrors.ErrAuthInProgress)
		assert.Equal(t, StateAuthenticating, f.svc.Sessions().State("busy"))
	})
}

func TestLoginRaceOnOneSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Login(ctx, "tab-1", "sayanth@example.com", "41421014")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrAuthInProgress)
	}
	assert.GreaterOrEqual(t, ok, 1)
	assert.Equal(t, StateLoggedIn, f.svc.Sessions().State("tab-1"))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Register(ctx, "", RegisterInput{Name: "Cara", Email: "cara@example.com", Password: "pass1234"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, res.User.Role)
	assert.False(t, res.User.IsMainAdmin)
	assert.Equal(t, StateLoggedIn, f.svc.Sessions().State(res.SessionID))

	_, err = f.svc.Register(ctx, "", RegisterInput{Name: "Dup", Email: "cara@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	_, err = f.svc.Register(ctx, "", RegisterInput{Name: "Case", Email: "CARA@example.com", Password: "pass1234"})
	assert.NoError(t, err, "email comparison is case-sensitive")

	_, err = f.svc.Register(ctx, "", RegisterInput{Name: "Boss", Email: "boss@example.com", Password: "x", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRegisterAdoptsClientRecordID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Clients.Put(ctx, models.Client{ID: "client-42", Email: "dan@example.com", OwnerID: f.main.ID}))

	res, err := f.svc.Register(ctx, "", RegisterInput{Name: "Dan", Email: "dan@example.com", Password: "pass1234"})
	require.NoError(t, err)
	assert.Equal(t, "client-42", res.User.ID)
}

func TestCreateSubAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mainSession, err := f.svc.Login(ctx, "main", "sayanth@example.com", "41421014")
	require.NoError(t, err)

	sub, err := f.svc.CreateSubAdmin(ctx, &f.main, RegisterInput{Name: "Sub", Email: "sub@example.com", Password: "pass1234"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, sub.Role)
	assert.False(t, sub.IsMainAdmin)

	current, ok := f.svc.Sessions().Current(mainSession.SessionID)
	require.True(t, ok)
	assert.Equal(t, f.main.ID, current.ID, "caller session is unchanged")

	_, err = f.svc.CreateSubAdmin(ctx, &sub, RegisterInput{Name: "Sub2", Email: "sub2@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.CreateSubAdmin(ctx, &f.main, RegisterInput{Name: "Again", Email: "sub@example.com", Password: "x"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
}

func TestUpdateUserProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Register(ctx, "cara-tab", RegisterInput{Name: "Cara", Email: "cara@example.com", Password: "pass1234"})
	require.NoError(t, err)
	cara := res.User
	_, err = f.svc.Register(ctx, "", RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "pass1234"})
	require.NoError(t, err)

	t.Run("rename refreshes sessions", func(t *testing.T) {
		updated, err := f.svc.UpdateUserProfile(ctx, &cara, cara.ID, ProfileUpdate{Name: "Cara Lee"})
		require.NoError(t, err)
		assert.Equal(t, "Cara Lee", updated.Name)
		assert.Equal(t, "cara@example.com", updated.Email)

		snapshot, ok := f.svc.Sessions().Current("cara-tab")
		require.True(t, ok)
		assert.Equal(t, "Cara Lee", snapshot.Name)
	})

	t.Run("email collision", func(t *testing.T) {
		_, err := f.svc.UpdateUserProfile(ctx, &cara, cara.ID, ProfileUpdate{Email: "eve@example.com"})
		assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
	})

	t.Run("password change needs the current password", func(t *testing.T) {
		_, err := f.svc.UpdateUserProfile(ctx, &cara, cara.ID, ProfileUpdate{NewPassword: "newpass99", CurrentPassword: "wrong"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

		_, err = f.svc.UpdateUserProfile(ctx, &cara, cara.ID, ProfileUpdate{NewPassword: "newpass99", CurrentPassword: "pass1234"})
		require.NoError(t, err)

		_, err = f.svc.Login(ctx, "", "cara@example.com", "pass1234")
		assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		_, err = f.svc.Login(ctx, "", "cara@example.com", "newpass99")
		assert.NoError(t, err)
	})

	t.Run("others are off limits", func(t *testing.T) {
		_, err := f.svc.UpdateUserProfile(ctx, &cara, f.main.ID, ProfileUpdate{Name: "Hacked"})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("main admin may edit anyone", func(t *testing.T) {
		updated, err := f.svc.UpdateUserProfile(ctx, &f.main, cara.ID, ProfileUpdate{Name: "Cara M"})
		require.NoError(t, err)
		assert.Equal(t, "Cara M", updated.Name)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.UpdateUserProfile(ctx, &f.main, "ghost", ProfileUpdate{Name: "x"})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestLogoutAndRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.Login(ctx, "", "sayanth@example.com", "41421014")
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, refreshed.SessionID)

	_, err = f.svc.Refresh(res.Tokens.RefreshToken)
	assert.Error(t, err, "refresh tokens are single use")

	f.svc.Logout(res.SessionID, refreshed.Tokens.AccessToken)
	assert.Equal(t, StateLoggedOut, f.svc.Sessions().State(res.SessionID))

	_, _, err = f.svc.Authenticate(refreshed.Tokens.AccessToken)
	assert.Error(t, err)

	_, err = f.svc.Refresh(refreshed.Tokens.RefreshToken)
	assert.Error(t, err)

	f.svc.Logout("never-existed", "")
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, err := f.svc.Register(ctx, "", RegisterInput{Name: "Cara", Email: "cara@example.com", Password: "pass1234"})
	require.NoError(t, err)

	users, err := f.svc.ListUsers(ctx, &f.main)
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}

	_, err = f.svc.ListUsers(ctx, &res.User)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestLoginCannotTakeOverSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, "cara-tab", RegisterInput{Name: "Cara", Email: "cara@example.com", Password: "pass1234"})
	require.NoError(t, err)
	victim, err := f.svc.Login(ctx, "shared", "sayanth@example.com", "41421014")
	require.NoError(t, err)

	stillIn := func() {
		t.Helper()
		actor, _, err := f.svc.Authenticate(victim.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, f.main.ID, actor.ID)
	}

	_, err = f.svc.Login(ctx, "shared", "cara@example.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	stillIn()

	_, err = f.svc.Login(ctx, "shared", "cara@example.com", "pass1234")
	assert.ErrorIs(t, err, apperrors.ErrSessionInUse)
	stillIn()

	_, err = f.svc.Register(ctx, "shared", RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "pass1234"})
	assert.ErrorIs(t, err, apperrors.ErrSessionInUse)
	stillIn()
	users, err := f.store.Users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2, "the refused registration creates no account")

	again, err := f.svc.Login(ctx, "shared", "sayanth@example.com", "41421014")
	require.NoError(t, err, "the same user may log in on its own session")
	assert.Equal(t, "shared", again.SessionID)
}

func TestSessionsExpireWithRefreshTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := repository.NewMemoryStore(logger.NewNop())
	require.NoError(t, store.Seed(ctx, now))

	svc := NewService(store, NewSessionStore(WithSessionTTL(time.Hour)), NewJWTManager("secret", time.Minute, time.Hour),
		logger.NewNop(), WithBcryptCost(bcrypt.MinCost), WithClock(func() time.Time { return now }))
	_, _, err := svc.EnsureMainAdmin(ctx, "Sayanth", "sayanth@example.com", "41421014")
	require.NoError(t, err)

	res, err := svc.Login(ctx, "", "sayanth@example.com", "41421014")
	require.NoError(t, err)

	now = now.Add(50 * time.Minute)
	refreshed, err := svc.Refresh(res.Tokens.RefreshToken)
	require.NoError(t, err)

	now = now.Add(50 * time.Minute)
	assert.Equal(t, 1, svc.Sessions().Active(), "refresh extends the session")

	now = now.Add(61 * time.Minute)
	assert.Equal(t, 1, svc.Sessions().Sweep())
	_, err = svc.Refresh(refreshed.Tokens.RefreshToken)
	assert.Error(t, err)
}
