package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/citymate-api/internal/application/session"
	"github.com/citymate-api/internal/application/user"
	"github.com/citymate-api/internal/application/verification"
	"github.com/citymate-api/internal/domain"
	jwtinfra "github.com/citymate-api/internal/infrastructure/jwt"
	"github.com/citymate-api/internal/infrastructure/memory"
	"github.com/citymate-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testCookie = "citymate_verification"
	testSID    = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

type mockFlow struct{ mock.Mock }

func (m *mockFlow) StartSignup(ctx context.Context, sid string, req verification.SignupRequest) (*verification.Pending, error) {
	args := m.Called(ctx, sid, req)
	p, _ := args.Get(0).(*verification.Pending)
	return p, args.Error(1)
}

func (m *mockFlow) StartPasswordReset(ctx context.Context, sid string, req verification.PasswordResetRequest) (*verification.Pending, error) {
	args := m.Called(ctx, sid, req)
	p, _ := args.Get(0).(*verification.Pending)
	return p, args.Error(1)
}

func (m *mockFlow) StartProfileUpdate(ctx context.Context, sid, userID string, req verification.ProfileUpdateRequest) (*verification.Pending, error) {
	args := m.Called(ctx, sid, userID, req)
	p, _ := args.Get(0).(*verification.Pending)
	return p, args.Error(1)
}

func (m *mockFlow) SubmitCode(ctx context.Context, sid, code string) (*verification.Pending, error) {
	args := m.Called(ctx, sid, code)
	p, _ := args.Get(0).(*verification.Pending)
	return p, args.Error(1)
}

func (m *mockFlow) Current(ctx context.Context, sid string) (*verification.Pending, error) {
	args := m.Called(ctx, sid)
	p, _ := args.Get(0).(*verification.Pending)
	return p, args.Error(1)
}

func (m *mockFlow) Complete(ctx context.Context, sid, callerID string, req verification.CompleteRequest) (*verification.Result, error) {
	args := m.Called(ctx, sid, callerID, req)
	res, _ := args.Get(0).(*verification.Result)
	return res, args.Error(1)
}

func (m *mockFlow) Abandon(ctx context.Context, sid string) error {
	return m.Called(ctx, sid).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req session.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*session.LoginResult)
	return res, args.Error(1)
}

func (m *mockSessionSvc) StartFor(ctx context.Context, u *domain.User) (*session.LoginResult, error) {
	args := m.Called(ctx, u)
	res, _ := args.Get(0).(*session.LoginResult)
	return res, args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockSessionSvc) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	s, _ := args.Get(0).(*domain.Session)
	return s, args.Error(1)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*user.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*user.Profile)
	return p, args.Error(1)
}

func (m *mockUserSvc) Deactivate(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour)
}

// liveSessions returns a store with an enabled login session sessionID for userID.
func liveSessions(t *testing.T, userID, sessionID string) *memory.SessionStore {
	t.Helper()
	s := memory.NewSessionStore()
	require.NoError(t, s.Put(context.Background(), &domain.Session{SessionID: sessionID, UserID: userID, Enable: true}))
	return s
}

// withSession serves h behind the verification cookie middleware, presenting testSID.
func withSession(h http.HandlerFunc) http.Handler {
	return middleware.VerificationSession(middleware.CookieOptions{Name: testCookie, MaxAge: time.Hour})(h)
}

func newRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.AddCookie(&http.Cookie{Name: testCookie, Value: testSID})
	return r
}

// authed attaches claims for userID directly to the request context.
func authed(r *http.Request, userID, sessionID string) *http.Request {
	claims := &jwtinfra.Claims{UserID: userID, SessionID: sessionID}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}
