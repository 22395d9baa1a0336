package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind 交易所调用错误分类
type ErrorKind int

const (
	// KindTransient 网络/API 暂时性错误，由下一个调度周期重试
	KindTransient ErrorKind = iota
	// KindConstraint 约束拒绝（最小名义、可平仓位不足等），跳过且不重试
	KindConstraint
	// KindFatal 不可恢复错误
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConstraint:
		return "constraint"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// APIError 带分类的交易所调用错误
type APIError struct {
	Kind ErrorKind
	Op   string // 发生错误的调用，如 "place_market_order"
	Err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient 包装暂时性错误
func Transient(op string, err error) *APIError {
	return &APIError{Kind: KindTransient, Op: op, Err: err}
}

// Constraintf 构造约束类错误
func Constraintf(op, format string, args ...interface{}) *APIError {
	return &APIError{Kind: KindConstraint, Op: op, Err: fmt.Errorf(format, args...)}
}

// Fatal 包装不可恢复错误
func Fatal(op string, err error) *APIError {
	return &APIError{Kind: KindFatal, Op: op, Err: err}
}

// KindOf 返回错误分类；非 APIError 一律视为暂时性。
func KindOf(err error) ErrorKind {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindTransient
}

// IsConstraint 判断是否为约束拒绝
func IsConstraint(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Kind == KindConstraint
}
