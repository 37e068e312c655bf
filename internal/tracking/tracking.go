// Package tracking persists the router's best-effort side-effect records:
// lead-source attribution and audit events. Writes happen through the
// dispatcher and must never affect the caller-facing reply flow.
package tracking

import (
	"context"

	"github.com/textback/textback/internal/database/models"
)

// Store persists attribution and audit records.
type Store interface {
	RecordAttribution(ctx context.Context, a *models.LeadAttribution) error
	RecordAudit(ctx context.Context, e *models.AuditEvent) error
}

// NopStore discards all records. Used when tracking is disabled and as a
// base for test fakes.
type NopStore struct{}

func (NopStore) RecordAttribution(ctx context.Context, a *models.LeadAttribution) error { return nil }
func (NopStore) RecordAudit(ctx context.Context, e *models.AuditEvent) error            { return nil }

var _ Store = NopStore{}
