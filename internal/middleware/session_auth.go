package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inbox/backend/internal/auth/jwt"
	"inbox/backend/internal/session"
)

const sessionContextKey = "session"

// RenewedTokenHeader 令牌临近过期时，新令牌通过该响应头下发
const RenewedTokenHeader = "X-Session-Token"

// SessionResolver 将访问令牌解析为会话，必要时返回续期令牌
type SessionResolver interface {
	ResolveAndRenew(token string) (*session.Session, *jwt.SessionToken, error)
}

// SessionAuth 会话认证中间件
type SessionAuth struct {
	resolver SessionResolver
	log      *zap.Logger
}

// NewSessionAuth 创建会话认证中间件
func NewSessionAuth(resolver SessionResolver, log *zap.Logger) *SessionAuth {
	return &SessionAuth{
		resolver: resolver,
		log:      log,
	}
}

// RequireSession 要求有效会话，会话外的请求直接返回 401
func (sa *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "缺少会话令牌")
			return
		}

		sess, renewed, err := sa.resolver.ResolveAndRenew(token)
		if err != nil {
			sa.log.Warn("session rejected",
				zap.Error(err),
				zap.String("ip", c.ClientIP()))

			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				abortUnauthorized(c, "会话令牌已过期")
			case errors.Is(err, session.ErrSessionNotFound):
				abortUnauthorized(c, "会话不存在或已结束")
			default:
				abortUnauthorized(c, "无效的会话令牌")
			}
			return
		}

		if renewed != nil {
			c.Header(RenewedTokenHeader, renewed.Token)
		}

		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

// CurrentSession 取出当前请求的会话
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok
}

// extractToken 从 Authorization 头或 X-Session-Token 头获取令牌
func extractToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return c.GetHeader("X-Session-Token")
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": http.StatusUnauthorized,
		"msg":  msg,
	})
}
