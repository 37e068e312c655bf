// Package notify alerts business owners about missed calls the router
// handled on their behalf. Notifications run as dispatcher side effects; a
// failed notification never affects the caller-facing reply.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// MissedCall is the event an owner is notified about.
type MissedCall struct {
	EventID      string
	TenantName   string
	CallerNumber string
	Disposition  string
	ReplyStage   string
	ReplyBody    string
	Timestamp    time.Time

	// Owner contact routing.
	OwnerEmail     string
	OwnerPushToken string
	OwnerPushOS    string
}

// Notifier delivers a missed-call alert over one channel.
type Notifier interface {
	NotifyMissedCall(ctx context.Context, mc MissedCall) error
}

// MultiNotifier fans one event out to every channel the owner has
// configured. Channel failures are logged and do not stop the others.
type MultiNotifier struct {
	email  Notifier // used when OwnerEmail is set
	push   Notifier // used when OwnerPushToken is set
	logger *slog.Logger
}

// NewMultiNotifier creates a MultiNotifier. Either channel may be nil.
func NewMultiNotifier(email, push Notifier, logger *slog.Logger) *MultiNotifier {
	return &MultiNotifier{
		email:  email,
		push:   push,
		logger: logger.With("subsystem", "notify"),
	}
}

// NotifyMissedCall delivers the event to all applicable channels. It
// returns nil even when individual channels fail; delivery is best effort.
func (m *MultiNotifier) NotifyMissedCall(ctx context.Context, mc MissedCall) error {
	if m.email != nil && mc.OwnerEmail != "" {
		if err := m.email.NotifyMissedCall(ctx, mc); err != nil {
			m.logger.Warn("email notification failed",
				"event_id", mc.EventID,
				"to", mc.OwnerEmail,
				"error", err,
			)
		}
	}
	if m.push != nil && mc.OwnerPushToken != "" {
		if err := m.push.NotifyMissedCall(ctx, mc); err != nil {
			m.logger.Warn("push notification failed",
				"event_id", mc.EventID,
				"platform", mc.OwnerPushOS,
				"error", err,
			)
		}
	}
	return nil
}
