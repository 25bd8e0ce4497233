package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var businessIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateBusinessID 验证业务记录 ID 格式
func ValidateBusinessID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(id) > 64 {
		return ErrIDTooLong
	}
	if !businessIDPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}
	return nil
}

// NormalizeRemark 清理审核意见: 去除首尾空白和控制字符
func NormalizeRemark(remark string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(remark)

	var b strings.Builder
	for _, r := range trimmed {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	cleaned := b.String()

	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		return "", ErrStringTooLong
	}
	return cleaned, nil
}

// 错误定义
var (
	ErrEmptyID            = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat    = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong          = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrStringTooLong      = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
	ErrEmptyIdentifier    = &ValidationError{Code: "EMPTY_IDENTIFIER", Message: "identifier cannot be empty"}
	ErrIdentifierTooLong  = &ValidationError{Code: "IDENTIFIER_TOO_LONG", Message: "identifier exceeds maximum length"}
	ErrInvalidIdentifier  = &ValidationError{Code: "INVALID_IDENTIFIER", Message: "identifier contains invalid characters"}
	ErrReservedIdentifier = &ValidationError{Code: "RESERVED_IDENTIFIER", Message: "identifier is a reserved SQL keyword"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
