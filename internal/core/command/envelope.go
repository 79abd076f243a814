/**
 * 命令信封
 * @author: sun977
 * @date: 2026.03.03
 * @description: Master 与 Agent 之间交换的调用请求/响应
 */
package command

import (
	"encoding/json"
	"fmt"
)

// Request 调用请求，Args 与 ParameterTypes 一一对应
type Request struct {
	ServiceInterface string            `json:"service_interface"`
	Method           string            `json:"method"`
	Args             []json.RawMessage `json:"args"`
	ParameterTypes   []string          `json:"parameter_types"`
	CorrelationID    string            `json:"correlation_id"`
}

// Validate 检查信封结构
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidEnvelope)
	}
	if r.ServiceInterface == "" || r.Method == "" {
		return fmt.Errorf("%w: service interface and method are required", ErrInvalidEnvelope)
	}
	if len(r.Args) != len(r.ParameterTypes) {
		return fmt.Errorf("%w: %d args but %d parameter types", ErrInvalidEnvelope, len(r.Args), len(r.ParameterTypes))
	}
	return nil
}

// Arg 按下标解码参数，同时校验类型描述
func (r *Request) Arg(i int, paramType string, v any) error {
	if i >= len(r.Args) || i >= len(r.ParameterTypes) {
		return fmt.Errorf("%w: missing argument %d (%s)", ErrArgumentMismatch, i, paramType)
	}
	if r.ParameterTypes[i] != paramType {
		return fmt.Errorf("%w: argument %d is %s, want %s", ErrArgumentMismatch, i, r.ParameterTypes[i], paramType)
	}
	if err := json.Unmarshal(r.Args[i], v); err != nil {
		return fmt.Errorf("%w: argument %d: %v", ErrArgumentMismatch, i, err)
	}
	return nil
}

// Response 调用响应；Error 非空表示 Agent 端执行失败
type Response struct {
	CorrelationID string          `json:"correlation_id"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Failed 是否为远端失败
func (r *Response) Failed() bool {
	return r.Error != ""
}

// NewResult 将领域响应编码为成功响应
func NewResult(correlationID string, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result for %s: %w", correlationID, err)
	}
	return &Response{CorrelationID: correlationID, Result: raw}, nil
}

// NewFailure 构造失败响应
func NewFailure(correlationID string, err error) *Response {
	return &Response{CorrelationID: correlationID, Error: err.Error()}
}

// argument 翻译器构造请求时使用的参数
type argument struct {
	paramType string
	value     any
}

func newRequest(iface, method string, args ...argument) (*Request, error) {
	req := &Request{
		ServiceInterface: iface,
		Method:           method,
		Args:             make([]json.RawMessage, 0, len(args)),
		ParameterTypes:   make([]string, 0, len(args)),
	}
	for i, a := range args {
		raw, err := json.Marshal(a.value)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d (%s): %w", i, a.paramType, err)
		}
		req.Args = append(req.Args, raw)
		req.ParameterTypes = append(req.ParameterTypes, a.paramType)
	}
	return req, nil
}
