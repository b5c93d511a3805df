package health

import (
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// SessionCounter 会话数量来源
type SessionCounter interface {
	Count() int
}

// Checker 健康检查器
type Checker struct {
	handler     healthcheck.Handler
	sessions    SessionCounter
	maxSessions int
	logger      *zap.Logger
	startedAt   time.Time
}

// NewChecker 创建健康检查器
//
// 参数:
//   - sessions: 会话注册表
//   - maxSessions: 会话上限，达到上限时 readiness 失败；0 表示不检查
//   - logger: 日志记录器
func NewChecker(sessions SessionCounter, maxSessions int, logger *zap.Logger) *Checker {
	c := &Checker{
		handler:     healthcheck.NewHandler(),
		sessions:    sessions,
		maxSessions: maxSessions,
		logger:      logger,
		startedAt:   time.Now(),
	}
	c.addChecks()
	return c
}

func (c *Checker) addChecks() {
	c.handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))

	c.handler.AddReadinessCheck("session-capacity", func() error {
		if c.maxSessions <= 0 {
			return nil
		}
		if n := c.sessions.Count(); n >= c.maxSessions {
			c.logger.Warn("session capacity reached", zap.Int("sessions", n), zap.Int("max", c.maxSessions))
			return errSessionCapacity
		}
		return nil
	})
}

// LiveEndpoint 存活检查
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.handler.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.handler.ReadyEndpoint(w, r)
}

// Status 概要状态，用于 /health
func (c *Checker) Status() map[string]interface{} {
	return map[string]interface{}{
		"status":   "ok",
		"sessions": c.sessions.Count(),
		"uptime":   time.Since(c.startedAt).Round(time.Second).String(),
	}
}
