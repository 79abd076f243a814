/**
 * 通用响应结构体
 * @author: sun977
 * @date: 2025.10.21
 * @description: Master 与 Agent 之间的通用 API 响应结构
 * @func: 定义了API响应的通用结构，包含状态码、状态、消息、数据、错误信息
 */

package base

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// APIResponse 通用API响应结构
type APIResponse struct {
	Code    int         `json:"code"`            // 响应状态码
	Status  string      `json:"status"`          // 响应状态："success" 或 "failed"
	Message string      `json:"message"`         // 响应消息
	Data    interface{} `json:"data,omitempty"`  // 响应数据，可选
	Error   string      `json:"error,omitempty"` // 错误信息，可选
}

// RawAPIResponse 客户端解码用，Data 延迟解析
type RawAPIResponse struct {
	Code    int             `json:"code"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Success 成功响应
func Success(code int, message string, data interface{}) APIResponse {
	return APIResponse{Code: code, Status: StatusSuccess, Message: message, Data: data}
}

// Failure 失败响应
func Failure(code int, message string, err error) APIResponse {
	resp := APIResponse{Code: code, Status: StatusFailed, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// BatchResult 批量接口的处理结果，单条失败不影响其它条目
type BatchResult struct {
	Accepted int         `json:"accepted"`
	Failed   []ItemError `json:"failed,omitempty"`
}

// ItemError 批量接口中单条失败
type ItemError struct {
	Index         int    `json:"index"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Error         string `json:"error"`
}
