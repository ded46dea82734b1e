package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveIP(t *testing.T, trustProxy bool, headers map[string]string) string {
	t.Helper()

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(clientIP(c, trustProxy))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", resolveIP(t, true, map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}))
	assert.Equal(t, "198.51.100.2", resolveIP(t, true, map[string]string{"X-Forwarded-For": "garbage", "X-Real-IP": "198.51.100.2"}))

	// headers are ignored unless the proxy is trusted
	untrusted := resolveIP(t, false, map[string]string{"X-Forwarded-For": "203.0.113.7"})
	assert.NotEqual(t, "203.0.113.7", untrusted)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	ua := strings.Repeat("中", 200)

	got := truncate(ua, maxUserAgentLength)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxUserAgentLength)
	assert.Equal(t, strings.Repeat("中", maxUserAgentLength/3), got)

	assert.Equal(t, "a", truncate("aé", 2))
	assert.Equal(t, "", truncate("é", 1))
}
