package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxResponseBytes = 64 << 10

// SiteVerifyClient implements Verifier against any provider speaking the
// siteverify protocol (Turnstile, reCAPTCHA, hCaptcha)
type SiteVerifyClient struct {
	client *http.Client
	config *Config

	warnOnce sync.Once
}

// siteVerifyResponse represents the provider's answer
type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname,omitempty"`
}

// NewSiteVerifyClient creates a new siteverify client
func NewSiteVerifyClient(config *Config) (*SiteVerifyClient, error) {
	if config.Secret != "" && config.VerifyURL == "" {
		return nil, fmt.Errorf("captcha verify URL is required when a secret is set")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &SiteVerifyClient{
		client: &http.Client{
			Timeout: timeout,
		},
		config: config,
	}, nil
}

// Verify posts the token to the provider. Missing configuration follows
// AllowUnconfigured; any transport or decoding failure fails closed.
func (c *SiteVerifyClient) Verify(ctx context.Context, token, clientIP string) bool {
	if c.config.Secret == "" {
		c.warnOnce.Do(func() {
			log.Printf("[CAPTCHA] No secret configured, allow_unconfigured=%t", c.config.AllowUnconfigured)
		})
		return c.config.AllowUnconfigured
	}

	resp, err := c.siteVerify(ctx, token, clientIP)
	if err != nil {
		log.Printf("[CAPTCHA] Verification request failed (%s): %v", c.config.Provider, err)
		return false
	}

	if !resp.Success {
		log.Printf("[CAPTCHA] Token rejected by %s: %v", c.config.Provider, resp.ErrorCodes)
	}

	return resp.Success
}

func (c *SiteVerifyClient) siteVerify(ctx context.Context, token, clientIP string) (*siteVerifyResponse, error) {
	form := url.Values{}
	form.Set("secret", c.config.Secret)
	form.Set("response", token)
	if clientIP != "" {
		form.Set("remoteip", clientIP)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send verify request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var out siteVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &out, nil
}
