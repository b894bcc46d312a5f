package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/apt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTenantsTable = `
CREATE TABLE IF NOT EXISTS tenants (
	brand_key  TEXT PRIMARY KEY,
	id         TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// TenantDirectory resolves brand keys against the shared tenants table.
type TenantDirectory struct {
	url    string
	pool   *pgxpool.Pool
	logger apt.Logger
}

func NewTenantDirectory(url string, logger apt.Logger) *TenantDirectory {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &TenantDirectory{url: url, logger: logger}
}

func (d *TenantDirectory) Start(ctx context.Context) error {
	pool, err := NewPool(ctx, d.url)
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, createTenantsTable); err != nil {
		pool.Close()
		return fmt.Errorf("cannot create tenants table: %w", err)
	}

	d.pool = pool
	d.logger.Info("Connected to PostgreSQL tenant directory")
	return nil
}

func (d *TenantDirectory) Stop(ctx context.Context) error {
	if d.pool != nil {
		d.pool.Close()
		d.logger.Info("Disconnected from PostgreSQL")
	}
	return nil
}

func (d *TenantDirectory) LookupTenant(ctx context.Context, brandKey string) (string, error) {
	var tenantID string
	err := d.pool.QueryRow(ctx, `SELECT id FROM tenants WHERE brand_key = $1`, brandKey).Scan(&tenantID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", pkg.ErrNotFound
	case err != nil:
		return "", pkg.NewStoreError("tenants", "select", err)
	}
	return tenantID, nil
}

// RegisterTenant records brandKey once; an existing mapping is left untouched.
func (d *TenantDirectory) RegisterTenant(ctx context.Context, brandKey, tenantID string) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO tenants (brand_key, id)
		VALUES ($1, $2)
		ON CONFLICT (brand_key) DO NOTHING
	`, brandKey, tenantID)
	if err != nil {
		return pkg.NewStoreError("tenants", "insert", err)
	}
	return nil
}

// NewPool configures a pgx pool for url and verifies connectivity.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}

	pcfg.HealthCheckPeriod = 30 * time.Second
	pcfg.MaxConnIdleTime = 5 * time.Minute

	pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `SET TIME ZONE 'UTC'`)
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	return pool, nil
}
