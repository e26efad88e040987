// Package tx carries an ambient *sql.Tx through the context so multi-store
// writes (an account transition plus its asset flagging, for example) commit
// or roll back as one unit. Stores join the ambient transaction when present
// and fall back to their own handle otherwise.
package tx

import (
	"context"
	"database/sql"
)

type key struct{}

// WithTx returns a context whose store calls join the given transaction.
// A nil transaction leaves the context untouched.
func WithTx(ctx context.Context, t *sql.Tx) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, key{}, t)
}

// From reports the ambient transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(key{}).(*sql.Tx)
	return t, ok
}
