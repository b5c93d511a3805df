package httptransport

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/middleware"
	"inbox/backend/internal/service"
	"inbox/backend/internal/session"
)

// MessageHandler 邮件相关接口。
//
// 变更接口对不存在的邮件 ID 同样返回 200 与未变化的列表。
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler 创建邮件处理器
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// List 获取邮件列表，支持 category / archived / starred / unread 筛选
// @Summary 邮件列表
// @Description 按集合顺序返回邮件，未提供的筛选条件不参与筛选
// @Tags Messages
// @Produce json
// @Param category query string false "分类" Enums(primary, promotions, social)
// @Param archived query bool false "是否已归档"
// @Param starred query bool false "是否星标"
// @Param unread query bool false "是否未读"
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		BadRequest(c, MsgInvalidFilter)
		return
	}

	Success(c, h.messages.List(sess, filter))
}

// Replace 整体替换邮件集合
// @Summary 替换邮件集合
// @Description 整体替换会话内的邮件集合，任一记录不合法时集合保持不变
// @Tags Messages
// @Accept json
// @Produce json
// @Param messages body []domain.Message true "新的邮件集合"
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 413 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /v1/messages [put]
func (h *MessageHandler) Replace(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	var messages []domain.Message
	if err := c.ShouldBindJSON(&messages); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	snapshot, err := h.messages.Replace(sess, messages)
	if err != nil {
		respondError(c, err, MsgMessageUpdateFailed)
		return
	}
	Success(c, snapshot)
}

// Reset 恢复初始邮件
// @Summary 恢复初始邮件
// @Tags Messages
// @Produce json
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/messages/reset [post]
func (h *MessageHandler) Reset(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	snapshot, err := h.messages.Reset(sess)
	if err != nil {
		respondError(c, err, MsgMessageResetFailed)
		return
	}
	Success(c, snapshot)
}

// Get 获取邮件详情
// @Summary 邮件详情
// @Tags Messages
// @Produce json
// @Param id path int true "邮件ID"
// @Success 200 {object} Response{data=domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id} [get]
func (h *MessageHandler) Get(c *gin.Context) {
	sess, id, ok := sessionAndID(c)
	if !ok {
		return
	}

	message, err := h.messages.Get(sess, id)
	if errors.Is(err, service.ErrMessageNotFound) {
		NotFound(c, MsgMessageNotFound)
		return
	}
	if err != nil {
		respondError(c, err, MsgInternalError)
		return
	}
	Success(c, message)
}

// Update 部分更新邮件
// @Summary 更新邮件
// @Description 对所有该 ID 的邮件应用部分更新，ID 不存在时列表不变
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path int true "邮件ID"
// @Param patch body domain.MessagePatch true "更新字段"
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 422 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id} [patch]
func (h *MessageHandler) Update(c *gin.Context) {
	sess, id, ok := sessionAndID(c)
	if !ok {
		return
	}

	var patch domain.MessagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	snapshot, err := h.messages.Update(sess, id, patch)
	if err != nil {
		respondError(c, err, MsgMessageUpdateFailed)
		return
	}
	Success(c, snapshot)
}

// Delete 删除所有该 ID 的邮件
// @Summary 删除邮件
// @Tags Messages
// @Produce json
// @Param id path int true "邮件ID"
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	if sess, id, ok := sessionAndID(c); ok {
		Success(c, h.messages.Delete(sess, id))
	}
}

// Archive 归档邮件
// @Summary 归档邮件
// @Tags Messages
// @Produce json
// @Param id path int true "邮件ID"
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id}/archive [post]
func (h *MessageHandler) Archive(c *gin.Context) {
	if sess, id, ok := sessionAndID(c); ok {
		Success(c, h.messages.Archive(sess, id))
	}
}

// MarkRead 标记已读
// @Summary 标记已读
// @Tags Messages
// @Produce json
// @Param id path int true "邮件ID"
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	if sess, id, ok := sessionAndID(c); ok {
		Success(c, h.messages.MarkRead(sess, id))
	}
}

// ToggleStar 切换星标
// @Summary 切换星标
// @Tags Messages
// @Produce json
// @Param id path int true "邮件ID"
// @Success 200 {object} Response{data=[]domain.Message}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Security BearerAuth
// @Router /v1/messages/{id}/star [post]
func (h *MessageHandler) ToggleStar(c *gin.Context) {
	if sess, id, ok := sessionAndID(c); ok {
		Success(c, h.messages.ToggleStar(sess, id))
	}
}

func requireSession(c *gin.Context) (*session.Session, bool) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		Unauthorized(c, MsgSessionRequired)
		return nil, false
	}
	return sess, true
}

func sessionAndID(c *gin.Context) (*session.Session, int64, bool) {
	sess, ok := requireSession(c)
	if !ok {
		return nil, 0, false
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, MsgInvalidMessageID)
		return nil, 0, false
	}
	return sess, id, true
}

// parseFilter 解析列表筛选参数，未提供的条件不参与筛选
func parseFilter(c *gin.Context) (domain.MessageFilter, error) {
	var filter domain.MessageFilter

	if raw := c.Query("category"); raw != "" {
		category := domain.Category(raw)
		if !category.Valid() {
			return filter, domain.ErrInvalidCategory
		}
		filter.Category = &category
	}

	for name, target := range map[string]**bool{
		"archived": &filter.Archived,
		"starred":  &filter.Starred,
		"unread":   &filter.Unread,
	} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, err
		}
		*target = &v
	}

	return filter, nil
}
