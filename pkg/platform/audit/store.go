package audit

import "context"

// Store is the append-only execution audit sink. Records are never mutated
// after creation.
type Store interface {
	AppendExecutionRecord(ctx context.Context, record ExecutionRecord) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionRecord, error)
}
