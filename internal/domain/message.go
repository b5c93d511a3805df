package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCategory 邮件分类不在允许范围内
	ErrInvalidCategory = errors.New("invalid message category")
	// ErrInvalidPatch 更新内容不合法
	ErrInvalidPatch = errors.New("invalid message patch")
)

// Category 收件箱分类，仅允许 primary / promotions / social 三种取值。
type Category string

const (
	CategoryPrimary    Category = "primary"
	CategoryPromotions Category = "promotions"
	CategorySocial     Category = "social"
)

// Valid 判断分类是否为合法取值
func (c Category) Valid() bool {
	switch c {
	case CategoryPrimary, CategoryPromotions, CategorySocial:
		return true
	default:
		return false
	}
}

// Message 表示收件箱中的一封邮件。
type Message struct {
	ID          int64     `json:"id"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail,omitempty"`
	Subject     string    `json:"subject"`
	Preview     string    `json:"preview"`
	Content     string    `json:"content,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	Read        bool      `json:"read"`
	Starred     bool      `json:"starred"`
	Category    Category  `json:"category"`
	IsNew       bool      `json:"isNew,omitempty"`    // 未读高亮，仅在初始数据中设置，已读时清除
	Archived    bool      `json:"archived,omitempty"` // 只能从 false 变为 true
}

// MessagePatch 部分更新字段，nil 表示不修改。
type MessagePatch struct {
	SenderName  *string   `json:"senderName,omitempty"`
	SenderEmail *string   `json:"senderEmail,omitempty"`
	Subject     *string   `json:"subject,omitempty"`
	Preview     *string   `json:"preview,omitempty"`
	Content     *string   `json:"content,omitempty"`
	Read        *bool     `json:"read,omitempty"`
	Starred     *bool     `json:"starred,omitempty"`
	Category    *Category `json:"category,omitempty"`
	IsNew       *bool     `json:"isNew,omitempty"`
	Archived    *bool     `json:"archived,omitempty"`
}

// Validate 校验更新内容
//
// isNew 只能被清除，archived 只能置为 true，分类必须合法。
func (p MessagePatch) Validate() error {
	if p.Category != nil && !p.Category.Valid() {
		return ErrInvalidCategory
	}
	if p.IsNew != nil && *p.IsNew {
		return fmt.Errorf("%w: isNew can only be cleared", ErrInvalidPatch)
	}
	if p.Archived != nil && !*p.Archived {
		return fmt.Errorf("%w: archived messages cannot be restored", ErrInvalidPatch)
	}
	if p.SenderEmail != nil {
		if err := ValidateSenderEmail(*p.SenderEmail); err != nil {
			return err
		}
	}
	if p.Subject != nil && len(*p.Subject) > MaxSubjectLength {
		return ErrSubjectTooLong
	}
	return nil
}

// Apply 将更新合并到邮件上，返回合并后的副本。
// 调用方需先调用 Validate。
func (p MessagePatch) Apply(m Message) Message {
	if p.SenderName != nil {
		m.SenderName = *p.SenderName
	}
	if p.SenderEmail != nil {
		m.SenderEmail = *p.SenderEmail
	}
	if p.Subject != nil {
		m.Subject = *p.Subject
	}
	if p.Preview != nil {
		m.Preview = *p.Preview
	}
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.Read != nil {
		m.Read = *p.Read
	}
	if p.Starred != nil {
		m.Starred = *p.Starred
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.IsNew != nil {
		m.IsNew = *p.IsNew
	}
	if p.Archived != nil {
		m.Archived = *p.Archived
	}
	// 已读与新邮件高亮不能同时存在
	if m.Read {
		m.IsNew = false
	}
	return m
}

// ReadPatch 标记已读：read=true 且 isNew=false 必须同时生效
func ReadPatch() MessagePatch {
	read, isNew := true, false
	return MessagePatch{Read: &read, IsNew: &isNew}
}

// ArchivePatch 归档
func ArchivePatch() MessagePatch {
	archived := true
	return MessagePatch{Archived: &archived}
}

// ValidateMessages 校验整组邮件，用于整体替换前
func ValidateMessages(messages []Message) error {
	for i := range messages {
		m := &messages[i]
		if !m.Category.Valid() {
			return fmt.Errorf("message %d: %w", m.ID, ErrInvalidCategory)
		}
		if m.Read && m.IsNew {
			return fmt.Errorf("message %d: %w: read message cannot be new", m.ID, ErrInvalidPatch)
		}
		if err := ValidateSenderEmail(m.SenderEmail); err != nil {
			return fmt.Errorf("message %d: %w", m.ID, err)
		}
	}
	return nil
}
