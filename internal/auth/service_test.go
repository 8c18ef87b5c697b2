package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUserStore struct {
	mu     sync.Mutex
	users  map[string]User
	nextID int
	calls  int
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]User)}
}

func (m *memoryUserStore) FindByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrRecordNotFound
}

func (m *memoryUserStore) FindByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return User{}, ErrRecordNotFound
}

func (m *memoryUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUserStore) Insert(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

type memoryTokenStore struct {
	mu      sync.Mutex
	records map[string]RefreshTokenRecord
	calls   int
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{records: make(map[string]RefreshTokenRecord)}
}

func (m *memoryTokenStore) UpsertByUserID(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	now := time.Now().UTC()
	record, ok := m.records[userID]
	if !ok {
		record = RefreshTokenRecord{UserID: userID, CreatedAt: now}
	}
	record.Token = token
	record.UpdatedAt = now
	m.records[userID] = record
	return nil
}

func (m *memoryTokenStore) UpdateByUserID(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if record, ok := m.records[userID]; ok {
		record.Token = token
		record.UpdatedAt = time.Now().UTC()
		m.records[userID] = record
	}
	return nil
}

func (m *memoryTokenStore) FindByUserAndToken(_ context.Context, userID, token string) (RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if record, ok := m.records[userID]; ok && record.Token == token {
		return record, nil
	}
	return RefreshTokenRecord{}, ErrRecordNotFound
}

func (m *memoryTokenStore) DeleteByToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for userID, record := range m.records {
		if record.Token == token {
			delete(m.records, userID)
		}
	}
	return nil
}

func newTestService() (*Service, *memoryUserStore, *memoryTokenStore) {
	users := newMemoryUserStore()
	tokens := newMemoryTokenStore()
	return NewService(users, tokens, newTestSigner()), users, tokens
}

func registerInput() RegisterInput {
	return RegisterInput{
		Username:        "alice01",
		Name:            "Alice",
		Email:           "alice@example.com",
		Password:        "Passw0rd1",
		ConfirmPassword: "Passw0rd1",
	}
}

func TestRegisterThenLogin(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	registered, pair, err := service.Register(ctx, registerInput())
	require.NoError(t, err)
	require.NotEmpty(t, registered.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	loggedIn, _, err := service.Login(ctx, LoginInput{Username: "alice01", Password: "Passw0rd1"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, loggedIn.ID)
	assert.Equal(t, registered.Public(), loggedIn.Public())
}

func TestRegister_DuplicateEmailAndUsername(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, registerInput())
	require.NoError(t, err)

	sameEmail := registerInput()
	sameEmail.Username = "bobby02"
	_, _, err = service.Register(ctx, sameEmail)
	require.ErrorIs(t, err, ErrEmailTaken)

	sameUsername := registerInput()
	sameUsername.Email = "other@example.com"
	_, _, err = service.Register(ctx, sameUsername)
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_InvalidPasswordRejectedBeforeStoreAccess(t *testing.T) {
	t.Parallel()

	service, users, tokens := newTestService()

	for _, password := range []string{"short1", "alllowercase1", "ALLUPPER1", "NoDigitsHere"} {
		in := registerInput()
		in.Password = password
		in.ConfirmPassword = password

		_, _, err := service.Register(context.Background(), in)

		var validationErr ValidationError
		require.ErrorAs(t, err, &validationErr, "password %q", password)
	}

	assert.Zero(t, users.calls, "user store touched before validation passed")
	assert.Zero(t, tokens.calls, "token store touched before validation passed")
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, registerInput())
	require.NoError(t, err)

	_, _, err = service.Login(ctx, LoginInput{Username: "nobody99", Password: "Passw0rd1"})
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, _, err = service.Login(ctx, LoginInput{Username: "alice01", Password: "Passw0rd2"})
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	_, pair, err := service.Register(ctx, registerInput())
	require.NoError(t, err)

	require.NoError(t, service.Logout(ctx, pair.RefreshToken))

	// The token still carries a valid signature and has not expired, but the
	// stored slot is gone.
	_, _, err = service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, service.Logout(ctx, ""))
	require.NoError(t, service.Logout(ctx, "never-issued"))
}

func TestRefresh_RotatesToken(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	user, pair, err := service.Register(ctx, registerInput())
	require.NoError(t, err)

	refreshed, next, err := service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshed.ID)
	require.NotEmpty(t, next.RefreshToken)

	// The displaced token is rejected, the rotated one works.
	_, _, err = service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = service.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_WrongSecretToken(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	user, _, err := service.Register(ctx, registerInput())
	require.NoError(t, err)

	forger := NewTokenService("other-access", "other-refresh", DefaultAccessTTL, DefaultRefreshTTL)
	forged, err := forger.SignRefreshToken(user.ID)
	require.NoError(t, err)

	_, _, err = service.Refresh(ctx, forged)
	require.ErrorIs(t, err, ErrUnauthorized)
}

// Two sequential logins leave only the second session usable: the refresh
// store keeps a single slot per user.
func TestLogin_SingleSlotRotation(t *testing.T) {
	t.Parallel()

	service, _, _ := newTestService()
	ctx := context.Background()

	_, _, err := service.Register(ctx, registerInput())
	require.NoError(t, err)

	_, first, err := service.Login(ctx, LoginInput{Username: "alice01", Password: "Passw0rd1"})
	require.NoError(t, err)
	_, second, err := service.Login(ctx, LoginInput{Username: "alice01", Password: "Passw0rd1"})
	require.NoError(t, err)

	_, _, err = service.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = service.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}
