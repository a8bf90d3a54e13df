package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrovia/agrovia-api/internal/domain/apperror"
	"github.com/agrovia/agrovia-api/internal/domain/entity"
	"github.com/agrovia/agrovia-api/internal/domain/event"
	"github.com/agrovia/agrovia-api/internal/domain/valueobject"
	"github.com/agrovia/agrovia-api/pkg/helpers"
)

type fakeStore struct {
	byEmail map[string]entity.Credential
	byUser  map[string]entity.Credential

	saveErr   error
	updateErr error
	findErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byEmail: map[string]entity.Credential{},
		byUser:  map[string]entity.Credential{},
	}
}

func (f *fakeStore) put(c entity.Credential) {
	f.byEmail[c.Email.String()] = c
	f.byUser[c.UserID] = c
}

func (f *fakeStore) FindByEmail(_ context.Context, email valueobject.Email) (*entity.Credential, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.byEmail[email.String()]
	if !ok {
		return nil, &apperror.NotFoundError{Resource: "credential"}
	}
	return &c, nil
}

func (f *fakeStore) FindByUserID(_ context.Context, userID string) (*entity.Credential, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	c, ok := f.byUser[userID]
	if !ok {
		return nil, &apperror.NotFoundError{Resource: "credential"}
	}
	return &c, nil
}

func (f *fakeStore) Save(_ context.Context, c *entity.Credential) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, exists := f.byEmail[c.Email.String()]; exists {
		return &apperror.ConflictError{Resource: "email"}
	}
	f.put(*c)
	return nil
}

func (f *fakeStore) Update(_ context.Context, c *entity.Credential) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, exists := f.byUser[c.UserID]; !exists {
		return &apperror.NotFoundError{Resource: "credential"}
	}
	f.put(*c)
	return nil
}

func (f *fakeStore) EmailExists(_ context.Context, email valueobject.Email) (bool, error) {
	_, ok := f.byEmail[email.String()]
	return ok, nil
}

type fakeDirectory struct {
	users map[string]entity.User
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: map[string]entity.User{}}
}

func (f *fakeDirectory) FindByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, &apperror.NotFoundError{Resource: "user"}
	}
	return &u, nil
}

func (f *fakeDirectory) Create(_ context.Context, u *entity.User) error {
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	f.users[u.ID] = *u
	return nil
}

type fakeCache struct {
	byUser   map[string]entity.Credential
	byEmail  map[string]entity.Credential
	sessions map[string]any

	readErr  error
	writeErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		byUser:   map[string]entity.Credential{},
		byEmail:  map[string]entity.Credential{},
		sessions: map[string]any{},
	}
}

func (f *fakeCache) CacheAuth(_ context.Context, c *entity.Credential, _ time.Duration) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.byUser[c.UserID] = *c
	f.byEmail[c.Email.String()] = *c
	return nil
}

func (f *fakeCache) GetByUserID(_ context.Context, userID string) (*entity.Credential, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	c, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCache) GetByEmail(_ context.Context, email valueobject.Email) (*entity.Credential, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	c, ok := f.byEmail[email.String()]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeCache) DeleteAuth(_ context.Context, userID string, email valueobject.Email) error {
	delete(f.byUser, userID)
	delete(f.byEmail, email.String())
	return nil
}

func (f *fakeCache) SetSession(_ context.Context, sessionID string, payload any, _ time.Duration) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.sessions[sessionID] = payload
	return nil
}

func (f *fakeCache) GetSession(_ context.Context, sessionID string, _ any) (bool, error) {
	_, ok := f.sessions[sessionID]
	return ok, nil
}

func (f *fakeCache) DeleteSession(_ context.Context, sessionID string) error {
	delete(f.sessions, sessionID)
	return nil
}

type fakeDispatcher struct {
	events []event.DomainEvent
	err    error
}

func (f *fakeDispatcher) PublishAll(_ context.Context, evs []event.DomainEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evs...)
	return nil
}

func (f *fakeDispatcher) names() []string {
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.EventName())
	}
	return out
}

type serviceFixture struct {
	svc        *AuthService
	store      *fakeStore
	users      *fakeDirectory
	cache      *fakeCache
	dispatcher *fakeDispatcher
	jwt        *helpers.JWTManager
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := newFakeStore()
	users := newFakeDirectory()
	c := newFakeCache()
	d := &fakeDispatcher{}
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	return &serviceFixture{
		svc:        NewAuthService(store, users, c, d, jwt, nil),
		store:      store,
		users:      users,
		cache:      c,
		dispatcher: d,
		jwt:        jwt,
	}
}

// seedAccount creates an active user plus credential the way Register would.
func (f *serviceFixture) seedAccount(t *testing.T, email, password string) *entity.User {
	t.Helper()
	user := entity.User{
		ID:     "user-" + email,
		Email:  email,
		Name:   "Seeded",
		Status: entity.UserStatusActive,
	}
	f.users.users[user.ID] = user

	raw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	cred, err := entity.NewCredential(user.ID, email, string(raw), "")
	require.NoError(t, err)
	f.store.put(cred)
	return &user
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, RegisterInput{
		Email:    "Farmer@Agrovia.IO",
		Password: "Sup3r$ecret",
		Name:     "Bob",
		Meta:     RequestMeta{IPAddress: "10.0.0.1", UserAgent: "ua"},
	})
	require.NoError(t, err)

	assert.Equal(t, "farmer@agrovia.io", res.Email, "email must be normalized")
	assert.NotEmpty(t, res.UserID)
	assert.NotEmpty(t, res.SessionID)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	// Credential persisted with a hash, never the plaintext.
	stored, ok := f.store.byEmail["farmer@agrovia.io"]
	require.True(t, ok)
	assert.NotContains(t, stored.PasswordHash.String(), "Sup3r$ecret")

	assert.Equal(t, []string{"UserRegistered"}, f.dispatcher.names())
	assert.Contains(t, f.cache.byUser, res.UserID)
	assert.Contains(t, f.cache.sessions, res.SessionID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "farmer@agrovia.io",
		Password: "An0ther$ecret",
		Name:     "Mallory",
	})
	var cerr *apperror.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "email", cerr.Resource)
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:    "farmer@agrovia.io",
		Password: "weak",
	})
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.dispatcher.events)
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	res, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "farmer@agrovia.io",
		Password: "Sup3r$ecret",
		Meta:     RequestMeta{IPAddress: "10.0.0.1"},
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.UserID)
	assert.NotEmpty(t, res.SessionID)

	stored := f.store.byUser[user.ID]
	require.NotNil(t, stored.LastLogin, "login must persist the timestamp")

	require.Equal(t, []string{"UserLoggedIn"}, f.dispatcher.names())
	login, ok := f.dispatcher.events[0].(event.UserLoggedIn)
	require.True(t, ok)
	assert.Equal(t, res.SessionID, login.SessionID)

	assert.Contains(t, f.cache.sessions, res.SessionID)
}

func TestLogin_NormalizesEmail(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "bob@example.com", "Sup3r$ecret")

	res, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "  Bob@Example.COM ",
		Password: "Sup3r$ecret",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", res.Email)
}

func TestLogin_EnumerationSafe(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	// Unknown account, wrong password and malformed email all fail with the
	// same generic error.
	for _, in := range []LoginInput{
		{Email: "nobody@agrovia.io", Password: "Sup3r$ecret"},
		{Email: "farmer@agrovia.io", Password: "Wr0ng$ecret"},
		{Email: "not-an-email", Password: "Sup3r$ecret"},
	} {
		_, err := f.svc.Login(context.Background(), in)
		var aerr *apperror.AuthenticationError
		require.ErrorAs(t, err, &aerr, "input %+v", in)
		assert.EqualError(t, err, "invalid credentials")
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	suspended := f.users.users[user.ID]
	suspended.Status = entity.UserStatusSuspended
	f.users.users[user.ID] = suspended

	_, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "farmer@agrovia.io",
		Password: "Sup3r$ecret",
	})
	var aerr *apperror.AuthorizationError
	require.ErrorAs(t, err, &aerr)
}

func TestLogin_CacheFailureFallsBackToStore(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")
	f.cache.readErr = errors.New("redis down")

	_, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "farmer@agrovia.io",
		Password: "Sup3r$ecret",
	})
	assert.NoError(t, err, "cache reads fail open to the store")
}

func TestLogin_CacheWriteFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")
	f.cache.writeErr = errors.New("redis down")

	_, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "farmer@agrovia.io",
		Password: "Sup3r$ecret",
	})
	assert.NoError(t, err)
}

func TestLogin_ServesFromCache(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	// Warm the cache, then break the store: a cached read must still succeed.
	_, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "farmer@agrovia.io",
		Password: "Sup3r$ecret",
	})
	require.NoError(t, err)

	f.store.findErr = errors.New("postgres down")
	_, err = f.svc.Login(context.Background(), LoginInput{
		Email:    "farmer@agrovia.io",
		Password: "Sup3r$ecret",
	})
	assert.NoError(t, err)
}

func TestRefresh_Success(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	pair, err := f.jwt.GenerateTokenPair(user.ID, user.Email, "sess-1")
	require.NoError(t, err)

	res, err := f.svc.Refresh(context.Background(), RefreshInput{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.UserID)
	assert.Equal(t, "sess-1", res.SessionID, "refresh keeps the session id")
	assert.NotEmpty(t, res.Tokens.AccessToken)

	assert.Equal(t, []string{"TokenRefreshed"}, f.dispatcher.names())
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	pair, err := f.jwt.GenerateTokenPair(user.ID, user.Email, "sess-1")
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), RefreshInput{RefreshToken: pair.AccessToken})
	var terr *apperror.TokenError
	require.ErrorAs(t, err, &terr)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	expired := helpers.NewJWTManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	pair, err := expired.GenerateTokenPair(user.ID, user.Email, "sess-1")
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), RefreshInput{RefreshToken: pair.RefreshToken})
	assert.True(t, apperror.IsTokenExpired(err))
}

func TestRefresh_InactiveAccount(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")
	pair, err := f.jwt.GenerateTokenPair(user.ID, user.Email, "sess-1")
	require.NoError(t, err)

	deleted := f.users.users[user.ID]
	deleted.Status = entity.UserStatusDeleted
	f.users.users[user.ID] = deleted

	_, err = f.svc.Refresh(context.Background(), RefreshInput{RefreshToken: pair.RefreshToken})
	var aerr *apperror.AuthorizationError
	require.ErrorAs(t, err, &aerr)
}

func TestLogout_Success(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")
	f.cache.sessions["sess-1"] = SessionPayload{SessionID: "sess-1", UserID: user.ID}

	err := f.svc.Logout(context.Background(), LogoutInput{
		UserID:    user.ID,
		SessionID: "sess-1",
		Reason:    "user_initiated",
	})
	require.NoError(t, err)

	assert.NotContains(t, f.cache.sessions, "sess-1")
	require.Equal(t, []string{"UserLoggedOut"}, f.dispatcher.names())
	out, ok := f.dispatcher.events[0].(event.UserLoggedOut)
	require.True(t, ok)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Equal(t, "manual", out.LogoutMethod)
}

func TestLogout_UnknownUser(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Logout(context.Background(), LogoutInput{UserID: "ghost", SessionID: "sess-1"})
	var nerr *apperror.NotFoundError
	require.ErrorAs(t, err, &nerr)
}

func TestChangePassword_Success(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")
	before := f.store.byUser[user.ID].PasswordHash

	err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      user.ID,
		OldPassword: "Sup3r$ecret",
		NewPassword: "N3w$ecret!!",
	})
	require.NoError(t, err)

	after := f.store.byUser[user.ID].PasswordHash
	assert.NotEqual(t, before, after)
	assert.True(t, helpers.CompareHashAndPassword(after.String(), "N3w$ecret!!"))
	assert.Equal(t, []string{"PasswordChanged"}, f.dispatcher.names())

	// Old password no longer works, the new one does.
	_, err = f.svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "Sup3r$ecret"})
	assert.Error(t, err)
	_, err = f.svc.Login(context.Background(), LoginInput{Email: user.Email, Password: "N3w$ecret!!"})
	assert.NoError(t, err)
}

func TestChangePassword_WrongOldPassword(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      user.ID,
		OldPassword: "Wr0ng$ecret",
		NewPassword: "N3w$ecret!!",
	})
	var aerr *apperror.AuthenticationError
	require.ErrorAs(t, err, &aerr)
	assert.Empty(t, f.dispatcher.events)
}

func TestChangePassword_WeakNewPassword(t *testing.T) {
	f := newFixture(t)
	user := f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")

	err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      user.ID,
		OldPassword: "Sup3r$ecret",
		NewPassword: "weak",
	})
	var verr *apperror.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDispatchFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "farmer@agrovia.io", "Sup3r$ecret")
	f.dispatcher.err = errors.New("amqp down")

	_, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "farmer@agrovia.io",
		Password: "Sup3r$ecret",
	})
	require.Error(t, err)

	// The state change is already committed; dispatch failure does not roll
	// it back.
	stored := f.store.byUser["user-farmer@agrovia.io"]
	assert.NotNil(t, stored.LastLogin)
}
