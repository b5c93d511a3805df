package service

import (
	"fmt"

	"go.uber.org/zap"

	"inbox/backend/internal/auth/jwt"
	"inbox/backend/internal/monitoring"
	"inbox/backend/internal/session"
)

// SessionListener 会话结束（主动关闭或过期）时的回调
type SessionListener interface {
	SessionClosed(sessionID string)
}

// OpenedSession 新建会话的返回结果
type OpenedSession struct {
	Session *session.Session
	Token   *jwt.SessionToken
}

// SessionService 会话生命周期管理：创建、令牌解析与续期、关闭与过期清理
type SessionService struct {
	registry *session.Registry
	tokens   *jwt.Manager
	metrics  *monitoring.Metrics
	listener SessionListener
	log      *zap.Logger
}

// NewSessionService 创建会话服务，并接管注册表的过期回调
func NewSessionService(registry *session.Registry, tokens *jwt.Manager, metrics *monitoring.Metrics, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SessionService{
		registry: registry,
		tokens:   tokens,
		metrics:  metrics,
		log:      log,
	}
	registry.OnExpire(s.sessionExpired)
	return s
}

// SetListener 设置会话结束回调
func (s *SessionService) SetListener(listener SessionListener) {
	s.listener = listener
}

// Open 创建会话并签发访问令牌
func (s *SessionService) Open() (*OpenedSession, error) {
	sess, err := s.registry.Open()
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(sess.ID)
	if err != nil {
		_ = s.registry.Close(sess.ID)
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSessionOpened()
		s.metrics.UpdateSessionsActive(s.registry.Count())
	}
	s.log.Info("session opened", zap.String("session_id", sess.ID))

	return &OpenedSession{Session: sess, Token: token}, nil
}

// Resolve 校验令牌并返回对应会话
func (s *SessionService) Resolve(token string) (*session.Session, error) {
	sess, _, err := s.resolve(token)
	return sess, err
}

// ResolveAndRenew 校验令牌并返回对应会话。
//
// 会话的空闲 TTL 随访问顺延，令牌有效期却在签发时固定；
// 剩余有效期不足一半时签发新令牌，调用方负责把它交给客户端。
func (s *SessionService) ResolveAndRenew(token string) (*session.Session, *jwt.SessionToken, error) {
	sess, claims, err := s.resolve(token)
	if err != nil {
		return nil, nil, err
	}

	if s.tokens.Remaining(claims) > s.tokens.Expiry()/2 {
		return sess, nil, nil
	}

	renewed, err := s.tokens.Issue(sess.ID)
	if err != nil {
		// 旧令牌仍然有效，本次请求照常处理
		s.log.Warn("failed to renew session token", zap.String("session_id", sess.ID), zap.Error(err))
		return sess, nil, nil
	}
	return sess, renewed, nil
}

// Refresh 为会话重新签发令牌
func (s *SessionService) Refresh(sessionID string) (*jwt.SessionToken, error) {
	if _, err := s.registry.Get(sessionID); err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return token, nil
}

// Close 结束会话
func (s *SessionService) Close(sessionID string) error {
	if err := s.registry.Close(sessionID); err != nil {
		return err
	}

	s.sessionEnded(sessionID, "closed")
	s.log.Info("session closed", zap.String("session_id", sessionID))
	return nil
}

// PruneExpired 清理过期会话，返回清理数量。指标与回调由过期回调处理
func (s *SessionService) PruneExpired() int {
	removed := s.registry.PruneExpired()
	if removed > 0 {
		s.log.Info("expired sessions pruned", zap.Int("count", removed))
	}
	return removed
}

func (s *SessionService) resolve(token string) (*session.Session, *jwt.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.registry.Get(claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, claims, nil
}

func (s *SessionService) sessionExpired(sessionID string) {
	s.sessionEnded(sessionID, "expired")
	s.log.Debug("session expired", zap.String("session_id", sessionID))
}

func (s *SessionService) sessionEnded(sessionID, reason string) {
	if s.metrics != nil {
		s.metrics.RecordSessionClosed(reason, 1)
		s.metrics.UpdateSessionsActive(s.registry.Count())
	}
	if s.listener != nil {
		s.listener.SessionClosed(sessionID)
	}
}
