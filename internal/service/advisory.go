package service

import (
	"context"
	"log"
	"sync/atomic"
)

// Advisory runs best-effort side writes (audit notes, metadata refreshes).
// A failed advisory write is logged and counted but never changes the result
// of the request that triggered it.
type Advisory struct {
	failures atomic.Int64
}

func NewAdvisory() *Advisory {
	return &Advisory{}
}

// Write executes fn and swallows its error after logging it
func (a *Advisory) Write(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		a.failures.Add(1)
		log.Printf("[ADVISORY] %s failed: %v", op, err)
	}
}

// Failures returns how many advisory writes have failed since start
func (a *Advisory) Failures() int64 {
	return a.failures.Load()
}
