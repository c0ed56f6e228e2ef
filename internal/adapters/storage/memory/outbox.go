package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// SentNotification is a notification captured by the Outbox.
type SentNotification struct {
	domain.Notification
	SentAt time.Time
}

// Outbox is an in-memory domain.Mailer. It is NOT a transport: notifications are
// only logged and kept for inspection in local mode and tests.
type Outbox struct {
	mu          sync.RWMutex
	sent        []SentNotification
	byRecipient map[string][]int
	now         func() time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{
		byRecipient: make(map[string][]int),
		now:         time.Now,
	}
}

// Send records the notification.
func (o *Outbox) Send(ctx context.Context, n domain.Notification) error {
	o.mu.Lock()
	o.sent = append(o.sent, SentNotification{Notification: n, SentAt: o.now()})
	o.byRecipient[n.To] = append(o.byRecipient[n.To], len(o.sent)-1)
	o.mu.Unlock()

	observability.LoggerFromContext(ctx).Info("notification stored in outbox",
		"to", n.To,
		"subject", n.Subject,
	)
	return nil
}

// ListByRecipient returns the last `limit` notifications sent to an address.
// If limit <= 0, returns all.
func (o *Outbox) ListByRecipient(to string, limit int) []SentNotification {
	o.mu.RLock()
	defer o.mu.RUnlock()

	idx := o.byRecipient[to]
	if limit <= 0 || limit > len(idx) {
		limit = len(idx)
	}

	out := make([]SentNotification, 0, limit)
	for _, i := range idx[len(idx)-limit:] {
		out = append(out, o.sent[i])
	}
	return out
}

// Len returns the number of captured notifications.
func (o *Outbox) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sent)
}
