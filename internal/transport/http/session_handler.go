package httptransport

import (
	"github.com/gin-gonic/gin"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/middleware"
	"inbox/backend/internal/service"
)

// SessionHandler 会话相关接口
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type openSessionResponse struct {
	SessionID string           `json:"sessionId"`
	Token     string           `json:"token"`
	ExpiresIn int64            `json:"expiresIn"` // 秒
	Messages  []domain.Message `json:"messages"`
}

type tokenResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"` // 秒
}

// Open 创建会话，返回令牌及初始邮件
// @Summary 创建会话
// @Description 创建一个新会话，返回访问令牌及初始邮件
// @Tags Sessions
// @Produce json
// @Success 201 {object} Response{data=openSessionResponse}
// @Failure 503 {object} Response
// @Failure 500 {object} Response
// @Router /v1/sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	opened, err := h.sessions.Open()
	if err != nil {
		respondError(c, err, MsgSessionOpenFailed)
		return
	}

	Created(c, openSessionResponse{
		SessionID: opened.Session.ID,
		Token:     opened.Token.Token,
		ExpiresIn: opened.Token.ExpiresIn,
		Messages:  opened.Session.Store.Snapshot(),
	})
}

// Refresh 为当前会话重新签发令牌
// @Summary 刷新会话令牌
// @Description 为当前会话签发新的访问令牌，旧令牌在到期前仍然有效
// @Tags Sessions
// @Produce json
// @Success 200 {object} Response{data=tokenResponse}
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Security BearerAuth
// @Router /v1/sessions/refresh [post]
func (h *SessionHandler) Refresh(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	token, err := h.sessions.Refresh(sess.ID)
	if err != nil {
		respondError(c, err, MsgTokenRefreshFailed)
		return
	}

	Success(c, tokenResponse{
		SessionID: token.SessionID,
		Token:     token.Token,
		ExpiresIn: token.ExpiresIn,
	})
}

// Close 结束当前会话
// @Summary 结束会话
// @Description 结束当前会话，会话内的邮件随之丢弃
// @Tags Sessions
// @Produce json
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/sessions/current [delete]
func (h *SessionHandler) Close(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		Unauthorized(c, MsgSessionRequired)
		return
	}

	if err := h.sessions.Close(sess.ID); err != nil {
		respondError(c, err, MsgSessionCloseFailed)
		return
	}
	Success(c, nil)
}
