package utils

// MaskToken 日志中只保留令牌首尾各 4 位
func MaskToken(token string) string {
	if len(token) <= 8 {
		if token == "" {
			return ""
		}
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
