/**
 * 关联ID
 * @author: sun977
 * @date: 2026.03.03
 * @description: <agentToken>#<commandUUID>|<serial>|<commandType>
 * @func: 收到后立即解析为 CorrelationID 结构，调用方不再重复切分字符串
 */
package command

import (
	"fmt"
	"strings"
)

const (
	tokenSep   = "#"
	segmentSep = "|"
)

// CorrelationID 解析后的关联ID
type CorrelationID struct {
	AgentToken  string
	CommandUUID string
	Serial      string
	Type        Type
}

// String 还原为线上格式
func (c CorrelationID) String() string {
	return c.AgentToken + tokenSep + c.CommandUUID + segmentSep + c.Serial + segmentSep + string(c.Type)
}

// FormatCorrelationID 组装关联ID，各段不能包含分隔符
func FormatCorrelationID(agentToken, commandUUID, serial string, t Type) (string, error) {
	if err := ValidateToken(agentToken); err != nil {
		return "", err
	}
	for _, seg := range []string{commandUUID, serial} {
		if seg == "" || strings.ContainsAny(seg, tokenSep+segmentSep) {
			return "", fmt.Errorf("%w: bad segment %q", ErrMalformedCorrelationID, seg)
		}
	}
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommandType, string(t))
	}
	return CorrelationID{AgentToken: agentToken, CommandUUID: commandUUID, Serial: serial, Type: t}.String(), nil
}

// ValidateToken Agent 令牌非空且不含 '#'
func ValidateToken(token string) error {
	if token == "" || strings.Contains(token, tokenSep) {
		return fmt.Errorf("%w: %q", ErrInvalidToken, token)
	}
	return nil
}

// ParseCorrelationID 解析关联ID
func ParseCorrelationID(id string) (CorrelationID, error) {
	token, ok := segment(id, tokenSep, 0)
	if !ok || token == "" {
		return CorrelationID{}, fmt.Errorf("%w: %q", ErrMalformedCorrelationID, id)
	}
	rest := id[len(token)+len(tokenSep):]
	parts := strings.Split(rest, segmentSep)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || strings.Contains(rest, tokenSep) {
		return CorrelationID{}, fmt.Errorf("%w: %q", ErrMalformedCorrelationID, id)
	}
	t, err := ParseType(parts[2])
	if err != nil {
		return CorrelationID{}, err
	}
	return CorrelationID{AgentToken: token, CommandUUID: parts[0], Serial: parts[1], Type: t}, nil
}

// ExtractAgentToken 返回第一个 '#' 之前的部分，格式错误时返回 false
func ExtractAgentToken(id string) (string, bool) {
	token, ok := segment(id, tokenSep, 0)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// ExtractCommandUUID 返回 '#' 与第一个 '|' 之间的部分
func ExtractCommandUUID(id string) (string, bool) {
	rest, ok := segment(id, tokenSep, 1)
	if !ok {
		return "", false
	}
	uuid, ok := segment(rest, segmentSep, 0)
	if !ok || uuid == "" {
		return "", false
	}
	return uuid, true
}

// segment 按第一个 sep 切成两段，返回第 idx 段；找不到分隔符时返回 false
func segment(s, sep string, idx int) (string, bool) {
	head, tail, found := strings.Cut(s, sep)
	if !found {
		return "", false
	}
	if idx == 0 {
		return head, true
	}
	return tail, true
}
