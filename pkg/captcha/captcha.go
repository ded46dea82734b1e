package captcha

import (
	"context"
	"time"
)

// Verifier checks a challenge token solved by the client
type Verifier interface {
	// Verify returns true only when the provider explicitly confirmed the token
	Verify(ctx context.Context, token, clientIP string) bool
}

// Config holds challenge provider configuration
type Config struct {
	Provider  string        // turnstile, recaptcha, hcaptcha
	VerifyURL string        // siteverify endpoint
	Secret    string        // shared secret; empty means unconfigured
	Timeout   time.Duration // HTTP request timeout

	// AllowUnconfigured makes Verify pass when Secret is empty
	AllowUnconfigured bool
}
