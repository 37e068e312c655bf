package database

import (
	"context"
	"fmt"

	"github.com/textback/textback/internal/database/models"
	"github.com/textback/textback/internal/tracking"
)

// trackingStore implements tracking.Store on the embedded SQLite database.
type trackingStore struct {
	db *DB
}

// NewTrackingStore creates a tracking.Store backed by this database.
func NewTrackingStore(db *DB) tracking.Store {
	return &trackingStore{db: db}
}

// RecordAttribution inserts a lead attribution record.
func (s *trackingStore) RecordAttribution(ctx context.Context, a *models.LeadAttribution) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_attributions (event_id, tenant_id, caller_number, source, campaign, created_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))`,
		a.EventID, a.TenantID, a.CallerNumber, a.Source, a.Campaign,
	)
	if err != nil {
		return fmt.Errorf("inserting lead attribution: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// RecordAudit inserts an audit event.
func (s *trackingStore) RecordAudit(ctx context.Context, e *models.AuditEvent) error {
	detail := e.Detail
	if detail == "" {
		detail = "{}"
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (event_id, tenant_id, action, detail, created_at)
		 VALUES (?, ?, ?, ?, datetime('now'))`,
		e.EventID, e.TenantID, e.Action, detail,
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	e.ID = id
	return nil
}

var _ tracking.Store = (*trackingStore)(nil)
