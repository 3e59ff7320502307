package models

import "errors"

// 失败类型分级:只有 transient 可重试,blocked/malformed 用同样输入重试会同样失败
var (
	// ErrInvalidDocument 文档无法通过结构校验,不会进入提取
	ErrInvalidDocument = errors.New("invalid document")
	// ErrServiceBlocked 外部服务拒绝响应(安全策略等)
	ErrServiceBlocked = errors.New("service blocked request")
	// ErrMalformedOutput 响应在一次修复后仍无法解析
	ErrMalformedOutput = errors.New("malformed service output")
	// ErrTransientService 网络/配额/5xx 等瞬时失败
	ErrTransientService = errors.New("transient service error")
	// ErrEmptyResult 重试耗尽且无数据,按警告处理而非错误
	ErrEmptyResult = errors.New("no data extracted")
)

// IsRetryable 只有瞬时服务错误可以重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientService)
}
