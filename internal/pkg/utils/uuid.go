/*
 * @author: sun977
 * @date: 2025.09.05
 * @description: uuid工具包
 * @func: 命令UUID生成；请求ID生成与校验
 */

package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID v4 标准格式
func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateUUIDWithPrefix 带前缀的 UUID，如 req-xxxx
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return prefix + "-" + GenerateUUID()
}

// IsValidUUID 标准或不含连字符的格式都接受
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// IsValidRequestID 校验外部传入的请求ID：UUID，可带 GenerateUUIDWithPrefix 生成的前缀
func IsValidRequestID(id, prefix string) bool {
	if prefix != "" {
		id = strings.TrimPrefix(id, prefix+"-")
	}
	return IsValidUUID(id)
}
