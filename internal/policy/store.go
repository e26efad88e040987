package policy

import (
	"context"
)

// Reader supplies the currently active configuration. Enforcement runs fail
// (and retry next interval) when the reader is unavailable; they never fall
// back to stale thresholds silently.
type Reader interface {
	GetActivePolicy(ctx context.Context) (Policy, error)
}

// Writer activates a new policy version. Used by admin tooling and seeds.
type Writer interface {
	SetActivePolicy(ctx context.Context, p Policy) error
}

// Store combines read and write for implementations that back both.
type Store interface {
	Reader
	Writer
}
