package domain

import "time"

// ChangeOp 邮件集合变更类型
type ChangeOp string

const (
	OpReplace    ChangeOp = "replace"
	OpUpdate     ChangeOp = "update"
	OpDelete     ChangeOp = "delete"
	OpArchive    ChangeOp = "archive"
	OpMarkRead   ChangeOp = "mark_read"
	OpToggleStar ChangeOp = "toggle_star"
)

// MessageChange 一次变更后推送给视图的数据，附带变更后的完整快照
type MessageChange struct {
	SessionID string    `json:"sessionId"`
	Op        ChangeOp  `json:"op"`
	MessageID int64     `json:"messageId,omitempty"`
	Messages  []Message `json:"messages"`
	At        time.Time `json:"at"`
}

// MessageFilter 列表视图的筛选条件，只影响返回结果，不修改集合
type MessageFilter struct {
	Category *Category
	Archived *bool
	Starred  *bool
	Unread   *bool
}

// Match 判断邮件是否满足筛选条件
func (f MessageFilter) Match(m Message) bool {
	if f.Category != nil && m.Category != *f.Category {
		return false
	}
	if f.Archived != nil && m.Archived != *f.Archived {
		return false
	}
	if f.Starred != nil && m.Starred != *f.Starred {
		return false
	}
	if f.Unread != nil && m.Read == *f.Unread {
		return false
	}
	return true
}
