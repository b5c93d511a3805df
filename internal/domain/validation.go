package domain

import (
	"errors"
	"net/mail"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail   = errors.New("invalid email format")
	ErrEmailTooLong   = errors.New("email address too long")
	ErrSubjectTooLong = errors.New("subject too long")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength = 254
	// 主题最大长度
	MaxSubjectLength = 500
)

// ValidateSenderEmail 校验发件人邮箱，空值表示未提供
func ValidateSenderEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}

	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	return nil
}
