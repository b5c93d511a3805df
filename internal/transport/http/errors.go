package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/session"
)

type errorEntry struct {
	err    error
	status int
	msg    string
}

// 错误映射表（业务错误 -> HTTP 状态码与中文消息），按顺序匹配
var errorTable = []errorEntry{
	// 邮件校验
	{domain.ErrInvalidCategory, http.StatusUnprocessableEntity, "邮件分类无效，仅支持 primary、promotions、social"},
	{domain.ErrInvalidPatch, http.StatusUnprocessableEntity, "更新内容无效"},
	{domain.ErrInvalidEmail, http.StatusUnprocessableEntity, "发件人邮箱格式无效"},
	{domain.ErrEmailTooLong, http.StatusUnprocessableEntity, "发件人邮箱过长"},
	{domain.ErrSubjectTooLong, http.StatusUnprocessableEntity, "邮件主题过长"},

	// 会话
	{session.ErrSessionNotFound, http.StatusUnauthorized, "会话不存在或已结束"},
	{session.ErrTooManySessions, http.StatusServiceUnavailable, "当前会话数量已达上限，请稍后再试"},
}

// respondError 按错误类型返回对应的响应，未知错误按 500 处理
func respondError(c *gin.Context, err error, fallback string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			respond(c, e.status, e.msg, nil)
			return
		}
	}
	_ = c.Error(err)
	InternalError(c, fallback)
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidJSON      = "JSON格式错误"
	MsgInvalidMessageID = "邮件ID格式无效"
	MsgInvalidFilter    = "筛选参数无效"

	// 会话相关
	MsgSessionRequired     = "缺少会话令牌"
	MsgSessionOpenFailed   = "创建会话失败"
	MsgSessionCloseFailed  = "结束会话失败"
	MsgMessageNotFound     = "邮件不存在"
	MsgMessageUpdateFailed = "更新邮件失败"
	MsgMessageResetFailed  = "恢复初始邮件失败"
	MsgTokenRefreshFailed  = "刷新会话令牌失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
