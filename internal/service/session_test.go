package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inbox/backend/internal/auth/jwt"
	"inbox/backend/internal/monitoring"
	"inbox/backend/internal/session"
)

const testSecret = "session-service-test-secret-0123456789"

// MockListener 模拟会话结束回调
type MockListener struct {
	mock.Mock
}

func (m *MockListener) SessionClosed(sessionID string) {
	m.Called(sessionID)
}

func newTestSessionService(t *testing.T, opts ...session.Option) (*SessionService, *session.Registry, *monitoring.Metrics) {
	t.Helper()

	registry := session.NewRegistry(seed, time.Hour, opts...)
	metrics := monitoring.NewMetrics()
	tokens := jwt.NewManager(testSecret, "inbox-test", time.Hour)
	return NewSessionService(registry, tokens, metrics, zap.NewNop()), registry, metrics
}

func TestSessionService_OpenAndResolve(t *testing.T) {
	svc, registry, metrics := newTestSessionService(t)

	opened, err := svc.Open()
	require.NoError(t, err)
	assert.Equal(t, opened.Session.ID, opened.Token.SessionID)
	assert.Equal(t, int64(3600), opened.Token.ExpiresIn)
	assert.Equal(t, 1, registry.Count())

	sess, err := svc.Resolve(opened.Token.Token)
	require.NoError(t, err)
	assert.Same(t, opened.Session, sess)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsOpened))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsActive))
}

func TestSessionService_ResolveErrors(t *testing.T) {
	svc, _, _ := newTestSessionService(t)

	t.Run("无效令牌", func(t *testing.T) {
		_, err := svc.Resolve("not-a-token")
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("会话已关闭", func(t *testing.T) {
		opened, err := svc.Open()
		require.NoError(t, err)
		require.NoError(t, svc.Close(opened.Session.ID))

		_, err = svc.Resolve(opened.Token.Token)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("其他服务签发的令牌", func(t *testing.T) {
		other := jwt.NewManager(testSecret, "inbox-test", time.Hour)
		token, err := other.Issue("unknown-session")
		require.NoError(t, err)

		_, err = svc.Resolve(token.Token)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestSessionService_Close(t *testing.T) {
	svc, _, metrics := newTestSessionService(t)
	listener := new(MockListener)
	svc.SetListener(listener)

	opened, err := svc.Open()
	require.NoError(t, err)

	listener.On("SessionClosed", opened.Session.ID).Once()
	require.NoError(t, svc.Close(opened.Session.ID))
	listener.AssertExpectations(t)

	assert.ErrorIs(t, svc.Close(opened.Session.ID), session.ErrSessionNotFound)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsClosed.WithLabelValues("closed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SessionsActive))
}

func TestSessionService_PruneExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, registry, metrics := newTestSessionService(t, session.WithClock(func() time.Time { return now }))

	_, err := svc.Open()
	require.NoError(t, err)
	_, err = svc.Open()
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 2, svc.PruneExpired())
	assert.Equal(t, 0, registry.Count())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SessionsClosed.WithLabelValues("expired")))
	assert.Equal(t, 0, svc.PruneExpired())
}

func TestSessionService_MaxSessions(t *testing.T) {
	svc, _, _ := newTestSessionService(t, session.WithMaxSessions(1))

	_, err := svc.Open()
	require.NoError(t, err)

	_, err = svc.Open()
	assert.ErrorIs(t, err, session.ErrTooManySessions)
}

func TestSessionService_ExpiredOnAccess(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, registry, metrics := newTestSessionService(t, session.WithClock(func() time.Time { return now }))
	listener := new(MockListener)
	svc.SetListener(listener)

	opened, err := svc.Open()
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsActive))

	// 令牌有效期与空闲 TTL 均为一小时，这里只让会话过期
	now = now.Add(2 * time.Hour)
	listener.On("SessionClosed", opened.Session.ID).Once()

	_, err = registry.Get(opened.Session.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	listener.AssertExpectations(t)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionsClosed.WithLabelValues("expired")))
}

func TestSessionService_PruneNotifiesListener(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, metrics := newTestSessionService(t, session.WithClock(func() time.Time { return now }))
	listener := new(MockListener)
	svc.SetListener(listener)

	opened, err := svc.Open()
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	listener.On("SessionClosed", opened.Session.ID).Once()
	assert.Equal(t, 1, svc.PruneExpired())

	listener.AssertExpectations(t)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.SessionsActive))
}

func TestSessionService_TokenRenewal(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	registry := session.NewRegistry(seed, time.Hour, session.WithClock(clock))
	tokens := jwt.NewManager(testSecret, "inbox-test", 10*time.Minute, jwt.WithClock(clock))
	svc := NewSessionService(registry, tokens, nil, zap.NewNop())

	opened, err := svc.Open()
	require.NoError(t, err)

	t.Run("有效期充足时不续期", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		sess, renewed, err := svc.ResolveAndRenew(opened.Token.Token)
		require.NoError(t, err)
		assert.Equal(t, opened.Session.ID, sess.ID)
		assert.Nil(t, renewed)
	})

	var renewed *jwt.SessionToken
	t.Run("过半后签发新令牌", func(t *testing.T) {
		now = now.Add(4 * time.Minute)
		sess, token, err := svc.ResolveAndRenew(opened.Token.Token)
		require.NoError(t, err)
		assert.Equal(t, opened.Session.ID, sess.ID)
		require.NotNil(t, token)
		assert.Equal(t, opened.Session.ID, token.SessionID)
		assert.Equal(t, int64(600), token.ExpiresIn)
		renewed = token
	})

	t.Run("旧令牌到期后新令牌继续可用", func(t *testing.T) {
		require.NotNil(t, renewed)
		now = now.Add(6 * time.Minute)

		_, _, err := svc.ResolveAndRenew(opened.Token.Token)
		assert.ErrorIs(t, err, jwt.ErrExpiredToken)

		sess, _, err := svc.ResolveAndRenew(renewed.Token)
		require.NoError(t, err)
		assert.Equal(t, opened.Session.ID, sess.ID)
	})
}

func TestSessionService_Refresh(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	registry := session.NewRegistry(seed, time.Hour, session.WithClock(clock))
	tokens := jwt.NewManager(testSecret, "inbox-test", 10*time.Minute, jwt.WithClock(clock))
	svc := NewSessionService(registry, tokens, nil, zap.NewNop())

	opened, err := svc.Open()
	require.NoError(t, err)

	now = now.Add(9 * time.Minute)
	refreshed, err := svc.Refresh(opened.Session.ID)
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	_, err = svc.Resolve(opened.Token.Token)
	assert.ErrorIs(t, err, jwt.ErrExpiredToken)

	sess, err := svc.Resolve(refreshed.Token)
	require.NoError(t, err)
	assert.Same(t, opened.Session, sess)

	require.NoError(t, svc.Close(opened.Session.ID))
	_, err = svc.Refresh(opened.Session.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}
