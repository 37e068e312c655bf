package database

import (
	"context"
	"fmt"

	"github.com/textback/textback/internal/database/models"
)

// messageLogRepo implements MessageLogRepository.
type messageLogRepo struct {
	db *DB
}

// NewMessageLogRepository creates a new MessageLogRepository.
func NewMessageLogRepository(db *DB) MessageLogRepository {
	return &messageLogRepo{db: db}
}

// Create inserts a message log entry.
func (r *messageLogRepo) Create(ctx context.Context, m *models.MessageLog) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO message_log (event_id, call_sid, tenant_id, from_number, to_number,
		 body, stage, provider_sid, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
		m.EventID, m.CallSid, m.TenantID, m.FromNumber, m.ToNumber,
		m.Body, m.Stage, m.ProviderSID,
	)
	if err != nil {
		return fmt.Errorf("inserting message log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	m.ID = id
	return nil
}

// CountByStage returns reply counts grouped by the fallback stage that
// produced them.
func (r *messageLogRepo) CountByStage(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT stage, COUNT(*) FROM message_log GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("counting messages by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var stage string
		var count int64
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("scanning message count row: %w", err)
		}
		counts[stage] = count
	}
	return counts, rows.Err()
}

// ListByEventID returns all message log entries for an event.
func (r *messageLogRepo) ListByEventID(ctx context.Context, eventID string) ([]models.MessageLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, call_sid, tenant_id, from_number, to_number,
		 body, stage, provider_sid, created_at
		 FROM message_log WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying message log: %w", err)
	}
	defer rows.Close()

	var msgs []models.MessageLog
	for rows.Next() {
		var m models.MessageLog
		if err := rows.Scan(&m.ID, &m.EventID, &m.CallSid, &m.TenantID, &m.FromNumber,
			&m.ToNumber, &m.Body, &m.Stage, &m.ProviderSID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message log row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
