package domain

import (
	"strings"
	"time"
)

const (
	MinScore int64 = -1_000_000_000_000
	MaxScore int64 = 1_000_000_000_000
)

type School struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Score     int64     `json:"score" db:"score"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Slugify derives a school id from its display name: lowercase ASCII letters
// and digits only.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WithinScoreBounds reports whether score+delta stays inside [MinScore, MaxScore]
// without overflowing int64.
func WithinScoreBounds(score, delta int64) bool {
	if delta > 0 && score > MaxScore-delta {
		return false
	}
	if delta < 0 && score < MinScore-delta {
		return false
	}
	return true
}
