package otp

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/citymate-api/internal/domain"
	"github.com/citymate-api/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Send(ctx context.Context, channel domain.Channel, addr, code string) error {
	return m.Called(ctx, channel, addr, code).Error(0)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T, d dispatcher) (Service, *memory.OTPStore, *clock) {
	t.Helper()
	st := memory.NewOTPStore()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(st, d, 10*time.Minute, time.Second, WithClock(clk.now)), st, clk
}

func issue(t *testing.T, s Service, contact string, ch domain.Channel, p domain.Purpose) *Issued {
	t.Helper()
	got, err := s.Issue(context.Background(), IssueRequest{Contact: contact, Channel: ch, Purpose: p})
	require.NoError(t, err)
	return got
}

func TestIssue_StoresSixDigitCodeWithTTL(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.Anything, domain.ChannelEmail, "a@b.com", mock.Anything).Return(nil)
	s, _, clk := newTestService(t, d)

	got := issue(t, s, "a@b.com", domain.ChannelEmail, domain.PurposeSignup)

	assert.True(t, got.Delivered)
	assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), got.OTP.Code)
	assert.Equal(t, clk.t.Add(10*time.Minute), got.OTP.ExpiresAt)
	d.AssertCalled(t, "Send", mock.Anything, domain.ChannelEmail, "a@b.com", got.OTP.Code)
}

func TestIssue_RejectsInvalidInput(t *testing.T) {
	s, _, _ := newTestService(t, new(mockDispatcher))
	ctx := context.Background()

	cases := []IssueRequest{
		{Contact: "  ", Channel: domain.ChannelEmail, Purpose: domain.PurposeSignup},
		{Contact: "a@b.com", Channel: "fax", Purpose: domain.PurposeSignup},
		{Contact: "a@b.com", Channel: domain.ChannelEmail, Purpose: "login"},
	}
	for _, req := range cases {
		_, err := s.Issue(ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestIssue_SupersedesPreviousCode(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s, _, _ := newTestService(t, d)
	ctx := context.Background()

	first := issue(t, s, "a@b.com", domain.ChannelEmail, domain.PurposeSignup)
	second := issue(t, s, "a@b.com", domain.ChannelEmail, domain.PurposeSignup)

	_, err := s.Verify(ctx, first.OTP.CodeID, first.OTP.Code, domain.PurposeSignup)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := s.Verify(ctx, second.OTP.CodeID, second.OTP.Code, domain.PurposeSignup)
	require.NoError(t, err)
	assert.Equal(t, second.OTP.CodeID, got.CodeID)
}

func TestIssue_DispatchFailureKeepsCodeUsable(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	s, _, _ := newTestService(t, d)

	got := issue(t, s, "9876543210", domain.ChannelPhone, domain.PurposePasswordReset)
	assert.False(t, got.Delivered)

	_, err := s.Verify(context.Background(), got.OTP.CodeID, got.OTP.Code, domain.PurposePasswordReset)
	assert.NoError(t, err)
}

func TestIssue_DispatchIgnoresCallerCancellation(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }),
		mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s, _, _ := newTestService(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := s.Issue(ctx, IssueRequest{Contact: "a@b.com", Channel: domain.ChannelEmail, Purpose: domain.PurposeSignup})
	require.NoError(t, err)
	assert.True(t, got.Delivered)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s, _, clk := newTestService(t, d)
	ctx := context.Background()
	got := issue(t, s, "a@b.com", domain.ChannelEmail, domain.PurposeSignup)

	clk.t = got.OTP.ExpiresAt.Add(-time.Nanosecond)
	_, err := s.Verify(ctx, got.OTP.CodeID, got.OTP.Code, domain.PurposeSignup)
	assert.NoError(t, err)

	clk.t = got.OTP.ExpiresAt
	_, err = s.Verify(ctx, got.OTP.CodeID, got.OTP.Code, domain.PurposeSignup)
	assert.ErrorIs(t, err, domain.ErrExpiredCode)
}

func TestVerify_WrongPurposeOrCodeIsNotFound(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s, _, _ := newTestService(t, d)
	ctx := context.Background()
	got := issue(t, s, "a@b.com", domain.ChannelEmail, domain.PurposeSignup)

	_, err := s.Verify(ctx, got.OTP.CodeID, got.OTP.Code, domain.PurposePasswordReset)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	wrong := "000000"
	if got.OTP.Code == wrong {
		wrong = "111111"
	}
	_, err = s.Verify(ctx, got.OTP.CodeID, wrong, domain.PurposeSignup)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Verify(ctx, "no-such-id", got.OTP.Code, domain.PurposeSignup)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConsume_RemovesCode(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s, _, _ := newTestService(t, d)
	ctx := context.Background()
	got := issue(t, s, "a@b.com", domain.ChannelEmail, domain.PurposeSignup)

	require.NoError(t, s.Consume(ctx, got.OTP))

	_, err := s.Lookup(ctx, got.OTP.CodeID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssue_ConcurrentIssuanceLeavesOneLiveCode(t *testing.T) {
	d := new(mockDispatcher)
	d.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s, st, _ := newTestService(t, d)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Issue(context.Background(), IssueRequest{Contact: "a@b.com", Channel: domain.ChannelEmail, Purpose: domain.PurposeSignup})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, st.Live(domain.PurposeSignup, "a@b.com"))
}

func TestGenerateCode_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
	}
}
