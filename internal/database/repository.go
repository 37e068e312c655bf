package database

import (
	"context"

	"github.com/textback/textback/internal/database/models"
)

// TenantRepository provides access to tenant records. Lookup methods return
// (nil, nil) when no row matches.
type TenantRepository interface {
	Create(ctx context.Context, t *models.Tenant) error
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
	// GetByNumberAndKind returns the enabled tenant of the given kind that
	// publishes the number.
	GetByNumberAndKind(ctx context.Context, number, kind string) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Update(ctx context.Context, t *models.Tenant) error
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// MessageLogRepository records outbound auto-replies.
type MessageLogRepository interface {
	Create(ctx context.Context, m *models.MessageLog) error
	ListByEventID(ctx context.Context, eventID string) ([]models.MessageLog, error)
	CountByStage(ctx context.Context) (map[string]int64, error)
}
