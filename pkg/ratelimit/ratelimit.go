// Package ratelimit implements fixed-window counters keyed by an arbitrary
// identity (client IP, session id) under a named policy.
package ratelimit

import (
	"context"
	"time"
)

// Policy grants Points consumable units per fixed Window for every key.
// Name is the counter namespace, so two policies never share a window.
type Policy struct {
	Name   string
	Points int
	Window time.Duration
}

// Limiter decides whether one more unit may be consumed for key under policy.
// A false result is a normal throttling signal, not an error.
type Limiter interface {
	Consume(ctx context.Context, key string, policy Policy) (bool, error)
}
