package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/domain"
	"github.com/LUELIS/CRM-JULIEN-RONOT-V2-sub001/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.ServerRepository   = (*Repository)(nil)
	_ repository.SettingsRepository = (*Repository)(nil)
	_ repository.StateRepository    = (*Repository)(nil)
)

// ListServers returns enabled control planes ordered by name.
func (r *Repository) ListServers(ctx context.Context) ([]domain.Server, error) {
	const query = `SELECT id, name, base_url, api_key, enabled, created_at
		FROM servers WHERE enabled = TRUE ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := make([]domain.Server, 0)
	for rows.Next() {
		var srv domain.Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.BaseURL, &srv.APIKey, &srv.Enabled, &srv.CreatedAt); err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// GetNotificationSettings loads the tenant's notification policy.
func (r *Repository) GetNotificationSettings(ctx context.Context, tenantID string) (*domain.NotificationSettings, error) {
	const query = `SELECT tenant_id, enabled, webhook_url, notify_on_success, notify_on_failure, notify_on_app_error, updated_at
		FROM notification_settings WHERE tenant_id = $1`
	row := r.pool.QueryRow(ctx, query, tenantID)
	var s domain.NotificationSettings
	if err := row.Scan(&s.TenantID, &s.Enabled, &s.WebhookURL, &s.NotifyOnSuccess, &s.NotifyOnFailure, &s.NotifyOnAppError, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// LoadState reads the tenant's reconcile snapshot, returning an empty state
// when none was persisted yet.
func (r *Repository) LoadState(ctx context.Context, tenantID string) (*domain.ReconcileState, error) {
	const query = `SELECT payload FROM engine_state WHERE tenant_id = $1`
	row := r.pool.QueryRow(ctx, query, tenantID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewReconcileState(), nil
		}
		return nil, fmt.Errorf("load reconcile state: %w", err)
	}
	return domain.ParseReconcileState(payload)
}

// SaveState replaces the tenant's snapshot in a single upsert so a run's
// state write is all-or-nothing.
func (r *Repository) SaveState(ctx context.Context, tenantID string, state *domain.ReconcileState) error {
	payload, err := state.Encode()
	if err != nil {
		return err
	}
	const query = `INSERT INTO engine_state (tenant_id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	_, err = r.pool.Exec(ctx, query, tenantID, payload, time.Now().UTC())
	return err
}
