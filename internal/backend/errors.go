package backend

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-admin/internal/production"
)

// ErrSessionExpired 平台返回401，调用方需要清空会话
var ErrSessionExpired = errors.New("session expired")

// RequestError 平台拒绝了请求（4xx/5xx）
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

// InsufficiencyError 批次状态变更因库存不足被拒绝
type InsufficiencyError struct {
	*RequestError
	Materials []production.InsufficientMaterial
}

func (e *InsufficiencyError) Error() string {
	return fmt.Sprintf("backend %d: %s (%d insufficient materials)", e.Status, e.Message, len(e.Materials))
}

func (e *InsufficiencyError) Unwrap() error { return e.RequestError }

// Lines 渲染后的不足明细
func (e *InsufficiencyError) Lines() []string {
	return production.RenderInsufficiency(e.Materials)
}

// errorBody 平台错误响应体
type errorBody struct {
	Message               string                            `json:"message"`
	InsufficientMaterials []production.InsufficientMaterial `json:"insufficientMaterials"`
}

// decodeError 把非2xx响应转换为错误，只在网络边界解析一次
func decodeError(status int, body []byte, fallback string) error {
	if status == 401 {
		return ErrSessionExpired
	}

	var eb errorBody
	_ = jsonUnmarshal(body, &eb)

	msg := eb.Message
	if msg == "" {
		msg = fallback
	}
	reqErr := &RequestError{Status: status, Message: msg}

	if eb.InsufficientMaterials != nil {
		return &InsufficiencyError{RequestError: reqErr, Materials: eb.InsufficientMaterials}
	}
	return reqErr
}

// AsInsufficiency 取出库存不足错误
func AsInsufficiency(err error) (*InsufficiencyError, bool) {
	var ie *InsufficiencyError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// AsRequestError 取出请求错误（包括库存不足）
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
