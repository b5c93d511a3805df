package service

import "errors"

var (
	// ErrMessageNotFound 会话中不存在该邮件（只用于读取，变更操作对未知 id 静默忽略）
	ErrMessageNotFound = errors.New("message not found")
)
