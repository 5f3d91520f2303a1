package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgMappingStore is a PostgreSQL-backed MappingStore using pgx/v5. It reads
// the tenant_mappings table:
//
//	CREATE TABLE tenant_mappings (
//	    app_tenant       TEXT PRIMARY KEY,
//	    inventory_tenant BIGINT NOT NULL
//	);
type PgMappingStore struct {
	pool *pgxpool.Pool
}

// NewPgMappingStore creates a new PostgreSQL mapping store.
func NewPgMappingStore(pool *pgxpool.Pool) *PgMappingStore {
	return &PgMappingStore{pool: pool}
}

// Resolve looks up appTenant.
func (s *PgMappingStore) Resolve(ctx context.Context, appTenant string) (int64, bool, error) {
	var inventoryTenant int64
	err := s.pool.QueryRow(ctx, `
		SELECT inventory_tenant
		FROM tenant_mappings
		WHERE app_tenant = $1`,
		appTenant,
	).Scan(&inventoryTenant)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query tenant mapping: %w", err)
	}
	return inventoryTenant, true, nil
}

// All returns every mapping.
func (s *PgMappingStore) All(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT app_tenant, inventory_tenant
		FROM tenant_mappings`)
	if err != nil {
		return nil, fmt.Errorf("query tenant mappings: %w", err)
	}
	defer rows.Close()

	mappings := make(map[string]int64)
	for rows.Next() {
		var appTenant string
		var inventoryTenant int64
		if err := rows.Scan(&appTenant, &inventoryTenant); err != nil {
			return nil, fmt.Errorf("scan tenant mapping: %w", err)
		}
		mappings[appTenant] = inventoryTenant
	}
	return mappings, rows.Err()
}

// Register adds or replaces a mapping.
func (s *PgMappingStore) Register(ctx context.Context, appTenant string, inventoryTenant int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_mappings (app_tenant, inventory_tenant)
		VALUES ($1, $2)
		ON CONFLICT (app_tenant) DO UPDATE SET inventory_tenant = $2`,
		appTenant, inventoryTenant,
	)
	if err != nil {
		return fmt.Errorf("upsert tenant mapping: %w", err)
	}
	return nil
}

// HealthCheck pings the pool. Used by the readiness endpoint.
func (s *PgMappingStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
