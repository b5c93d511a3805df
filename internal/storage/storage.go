package storage

import (
	"inbox/backend/internal/domain"
)

// MessageRepository 定义会话内邮件集合的存取操作。
//
// 变更方法返回是否命中记录；未命中时不修改集合也不返回错误。
type MessageRepository interface {
	Replace(messages []domain.Message) error
	Update(id int64, patch domain.MessagePatch) (bool, error)
	Delete(id int64) bool
	Archive(id int64) bool
	MarkRead(id int64) bool
	ToggleStar(id int64) bool

	Get(id int64) (domain.Message, bool)
	Snapshot() []domain.Message
	Len() int
}
