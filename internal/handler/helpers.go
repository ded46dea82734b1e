package handler

import (
	"net"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
)

// clientIP resolves the caller's address. Proxy headers are only honored when
// the service runs behind a trusted proxy, otherwise they are client controlled.
// Priority: X-Forwarded-For (first entry) > X-Real-IP > remote address
func clientIP(c *fiber.Ctx, trustProxy bool) string {
	if trustProxy {
		if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
			ip := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}

		if realIP := strings.TrimSpace(c.Get("X-Real-IP")); realIP != "" {
			if net.ParseIP(realIP) != nil {
				return realIP
			}
		}
	}

	return c.IP()
}

// userAgent prefers the value reported by the client body over the header
func userAgent(c *fiber.Ctx, reported string) string {
	if ua := strings.TrimSpace(reported); ua != "" {
		return truncate(ua, maxUserAgentLength)
	}
	return truncate(c.Get(fiber.HeaderUserAgent), maxUserAgentLength)
}

const maxUserAgentLength = 512

// truncate cuts s to at most n bytes without splitting a multi-byte rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to the start of the rune that straddles the limit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
