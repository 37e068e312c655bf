// Package pgstore implements tracking.Store on PostgreSQL for deployments
// that centralise attribution and audit data outside the router's embedded
// database.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/textback/textback/internal/database/models"
	"github.com/textback/textback/internal/tracking"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements tracking.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection and runs pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgresql: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgresql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	slog.Info("postgresql tracking store opened")
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs all pending SQL migration files in order.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version := strings.TrimSuffix(entry.Name(), ".sql")

		var count int
		if err := s.db.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations WHERE version = $1", version,
		).Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %s: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", version, err)
		}

		slog.Info("applied tracking migration", "version", version)
	}

	return nil
}

// RecordAttribution inserts a lead attribution record.
func (s *Store) RecordAttribution(ctx context.Context, a *models.LeadAttribution) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO lead_attributions (event_id, tenant_id, caller_number, source, campaign)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.EventID, a.TenantID, a.CallerNumber, a.Source, a.Campaign,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("inserting lead attribution: %w", err)
	}
	return nil
}

// RecordAudit inserts an audit event.
func (s *Store) RecordAudit(ctx context.Context, e *models.AuditEvent) error {
	detail := e.Detail
	if detail == "" {
		detail = "{}"
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO audit_events (event_id, tenant_id, action, detail)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		e.EventID, e.TenantID, e.Action, detail,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

var _ tracking.Store = (*Store)(nil)
