package session

import (
	"context"
	"errors"
	"testing"

	"github.com/citymate-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) user(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	return m.user(m.Called(ctx, userID))
}
func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return m.user(m.Called(ctx, username))
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.user(m.Called(ctx, email))
}
func (m *mockUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return m.user(m.Called(ctx, phone))
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) Disable(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, sessionID string) (string, error) {
	args := m.Called(userID, sessionID)
	return args.String(0), args.Error(1)
}

// --- helpers ---

func newSvc(us *mockUserStore, ss *mockSessionStore, jwt *mockJWTSigner) Service {
	return NewService(ServiceDeps{UserRepo: us, SessionRepo: ss, JWTProvider: jwt})
}

func userWithPassword(t *testing.T, password string, enable bool) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	email := "alice@b.com"
	return &domain.User{UserID: "user-123", Username: "alice", Email: &email, PasswordHash: string(hash), Enable: enable}
}

// --- Login tests ---

func TestLogin_ByUsername(t *testing.T) {
	us, ss, jwt := &mockUserStore{}, &mockSessionStore{}, &mockJWTSigner{}
	us.On("GetByUsername", mock.Anything, "alice").Return(userWithPassword(t, "pw123456", true), nil)
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	jwt.On("Sign", "user-123", mock.Anything).Return("bearer", nil)

	result, err := newSvc(us, ss, jwt).Login(context.Background(), LoginRequest{Login: "alice", Password: "pw123456"})

	require.NoError(t, err)
	assert.Equal(t, "bearer", result.Bearer)
	assert.True(t, result.Session.Enable)
	assert.Equal(t, "alice", result.Session.User.Username)
}

func TestLogin_FallsBackToEmailAndPhone(t *testing.T) {
	us, ss, jwt := &mockUserStore{}, &mockSessionStore{}, &mockJWTSigner{}
	u := userWithPassword(t, "pw123456", true)
	us.On("GetByUsername", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
	us.On("GetByEmail", mock.Anything, "alice@b.com").Return(u, nil)
	us.On("GetByPhone", mock.Anything, "9876543210").Return(u, nil)
	ss.On("Put", mock.Anything, mock.Anything).Return(nil)
	jwt.On("Sign", mock.Anything, mock.Anything).Return("bearer", nil)
	svc := newSvc(us, ss, jwt)

	_, err := svc.Login(context.Background(), LoginRequest{Login: "Alice@B.com", Password: "pw123456"})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), LoginRequest{Login: "98765-43210", Password: "pw123456"})
	require.NoError(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(userWithPassword(t, "pw123456", true), nil)

	_, err := newSvc(us, &mockSessionStore{}, &mockJWTSigner{}).Login(context.Background(), LoginRequest{Login: "alice", Password: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_UnknownUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
	us.On("GetByPhone", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)

	_, err := newSvc(us, &mockSessionStore{}, &mockJWTSigner{}).Login(context.Background(), LoginRequest{Login: "ghost", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_DisabledAccount(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(userWithPassword(t, "pw123456", false), nil)

	_, err := newSvc(us, &mockSessionStore{}, &mockJWTSigner{}).Login(context.Background(), LoginRequest{Login: "alice", Password: "pw123456"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLogin_StoreErrorPropagates(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(nil, errors.New("dynamo unavailable"))

	_, err := newSvc(us, &mockSessionStore{}, &mockJWTSigner{}).Login(context.Background(), LoginRequest{Login: "alice", Password: "x"})
	assert.ErrorContains(t, err, "dynamo unavailable")
}

// --- GetCurrent / Logout ---

func TestGetCurrent_DisabledSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(&domain.Session{SessionID: "sess-1", Enable: false}, nil)

	_, err := newSvc(&mockUserStore{}, ss, &mockJWTSigner{}).GetCurrent(context.Background(), "sess-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGetCurrent_AttachesUser(t *testing.T) {
	us, ss := &mockUserStore{}, &mockSessionStore{}
	ss.On("Get", mock.Anything, "sess-1").Return(&domain.Session{SessionID: "sess-1", UserID: "user-123", Enable: true}, nil)
	us.On("Get", mock.Anything, "user-123").Return(userWithPassword(t, "pw123456", true), nil)

	sess, err := newSvc(us, ss, &mockJWTSigner{}).GetCurrent(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
}

func TestLogout_DisablesSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Disable", mock.Anything, "sess-1").Return(nil)

	require.NoError(t, newSvc(&mockUserStore{}, ss, &mockJWTSigner{}).Logout(context.Background(), "sess-1"))
	ss.AssertExpectations(t)
}
