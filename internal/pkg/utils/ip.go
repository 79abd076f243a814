package utils

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// NormalizeIP 去掉端口，X-Forwarded-For 取第一跳，IPv4-mapped IPv6 转为 IPv4
func NormalizeIP(input string) string {
	ip := strings.TrimSpace(strings.Split(input, ",")[0])
	if ip == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(ip); err == nil {
		ip = h
	}
	parsed := net.ParseIP(ip)
	switch {
	case parsed == nil:
		return ip
	case parsed.To4() != nil:
		return parsed.To4().String()
	default:
		return parsed.String()
	}
}

// GetClientIP Agent 多在 NAT 或反向代理之后，优先取代理头
func GetClientIP(c *gin.Context) string {
	return clientIP(c.Request.Header, c.ClientIP())
}

func clientIP(h http.Header, fallback string) string {
	for _, key := range []string{"X-Forwarded-For", "X-Real-IP"} {
		if v := h.Get(key); v != "" {
			return NormalizeIP(v)
		}
	}
	return NormalizeIP(fallback)
}
