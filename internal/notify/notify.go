package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "custos/pkg/domain"
	"custos/pkg/email"
)

// Kind classifies compliance notices sent to account holders.
type Kind string

const (
	KindWarning       Kind = "warning"
	KindSuspension    Kind = "suspension"
	KindReinstatement Kind = "reinstatement"
	KindLateFee       Kind = "late_fee"
)

// Notice is one outbound compliance notification.
type Notice struct {
	AccountID id.AccountID `json:"account_id"`
	Kind      Kind         `json:"kind"`
	// Recipient is the display name the notice is addressed to, empty when
	// the account carries no contact email.
	Recipient  string    `json:"recipient,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecipientFor derives a display name from a contact email address so notice
// sinks can address the holder without a separate profile lookup.
func RecipientFor(contactEmail string) string {
	return email.AddresseeName(contactEmail)
}

// Notifier delivers notices. Delivery is best-effort: enforcement transitions
// commit regardless of whether the notice reaches the account holder, so
// implementations must not block state changes on broker availability.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to the structured log. It is the default sink
// when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notice) {
	l.logger.Info("compliance notice",
		"account_id", n.AccountID.String(),
		"kind", string(n.Kind),
		"message", n.Message,
	)
}

// Recorder captures notices in memory for tests.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// ByKind returns recorded notices of one kind.
func (r *Recorder) ByKind(k Kind) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, n := range r.notices {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}
