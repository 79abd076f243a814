/**
 * 命令协议错误定义
 * @author: sun977
 * @date: 2026.03.03
 * @description: 命令信封、关联ID、翻译器相关错误
 */
package command

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCommandType     = errors.New("command not implemented")        // 命令类型未注册翻译器
	ErrMalformedCorrelationID = errors.New("malformed correlation id")       // 关联ID结构错误
	ErrInvalidEnvelope        = errors.New("invalid command envelope")       // 信封参数与类型描述不一致
	ErrArgumentMismatch       = errors.New("command argument type mismatch") // Agent 端参数解包失败
	ErrInvalidToken           = errors.New("invalid agent token")
	ErrTranslatorPanic        = errors.New("translator panicked") // 翻译器 panic，已在单条范围内恢复
)

// TranslationError 单条命令/响应翻译失败，只影响当前条目
type TranslationError struct {
	Type          Type
	CorrelationID string
	Err           error
}

func (e *TranslationError) Error() string {
	if e.CorrelationID == "" {
		return fmt.Sprintf("translate %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("translate %s [%s]: %v", e.Type, e.CorrelationID, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}
