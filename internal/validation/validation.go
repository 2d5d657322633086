package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Error 表单校验错误，提交前在本地发现，不会发出请求
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Fail 构造校验错误
func Fail(field, message string) error {
	return &Error{Field: field, Message: message}
}

// Required 非空校验
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Field: field, Message: "required"}
	}
	return nil
}

// As 提取校验错误
func As(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
