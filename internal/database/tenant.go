package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/textback/textback/internal/database/models"
)

const tenantColumns = `id, kind, parent_id, name, category, number, forwarding_number,
	 tier, ordering_link, quote_link, faq, owner_email, owner_push_token,
	 owner_push_os, enabled, created_at, updated_at`

// tenantRepo implements TenantRepository.
type tenantRepo struct {
	db *DB
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(db *DB) TenantRepository {
	return &tenantRepo{db: db}
}

// Create inserts a new tenant.
func (r *tenantRepo) Create(ctx context.Context, t *models.Tenant) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (kind, parent_id, name, category, number, forwarding_number,
		 tier, ordering_link, quote_link, faq, owner_email, owner_push_token,
		 owner_push_os, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'), datetime('now'))`,
		t.Kind, t.ParentID, t.Name, t.Category, t.Number, t.ForwardingNumber,
		t.Tier, t.OrderingLink, t.QuoteLink, t.FAQ, t.OwnerEmail, t.OwnerPushToken,
		t.OwnerPushOS, t.Enabled,
	)
	if err != nil {
		return fmt.Errorf("inserting tenant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	t.ID = id
	return nil
}

// GetByID returns a tenant by ID.
func (r *tenantRepo) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
}

// GetByNumberAndKind returns the enabled tenant of the given kind publishing
// the number.
func (r *tenantRepo) GetByNumberAndKind(ctx context.Context, number, kind string) (*models.Tenant, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE number = ? AND kind = ? AND enabled = 1`,
		number, kind,
	))
}

// List returns all tenants ordered by number.
func (r *tenantRepo) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := scanTenant(rows.Scan, &t); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// Update modifies an existing tenant.
func (r *tenantRepo) Update(ctx context.Context, t *models.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET kind = ?, parent_id = ?, name = ?, category = ?, number = ?,
		 forwarding_number = ?, tier = ?, ordering_link = ?, quote_link = ?, faq = ?,
		 owner_email = ?, owner_push_token = ?, owner_push_os = ?, enabled = ?,
		 updated_at = datetime('now')
		 WHERE id = ?`,
		t.Kind, t.ParentID, t.Name, t.Category, t.Number, t.ForwardingNumber,
		t.Tier, t.OrderingLink, t.QuoteLink, t.FAQ, t.OwnerEmail, t.OwnerPushToken,
		t.OwnerPushOS, t.Enabled, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}
	return nil
}

// Count returns the total number of tenant records.
func (r *tenantRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting tenants: %w", err)
	}
	return count, nil
}

// Delete removes a tenant by ID.
func (r *tenantRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return nil
}

func (r *tenantRepo) scanOne(row *sql.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := scanTenant(row.Scan, &t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	return &t, nil
}

func scanTenant(scan func(...any) error, t *models.Tenant) error {
	return scan(&t.ID, &t.Kind, &t.ParentID, &t.Name, &t.Category, &t.Number,
		&t.ForwardingNumber, &t.Tier, &t.OrderingLink, &t.QuoteLink, &t.FAQ,
		&t.OwnerEmail, &t.OwnerPushToken, &t.OwnerPushOS, &t.Enabled,
		&t.CreatedAt, &t.UpdatedAt)
}
