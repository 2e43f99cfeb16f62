// Package postgres mirrors the published catalog into a Postgres table so
// downstream services can query deployments with SQL.
package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devblac/dex-catalog/internal/catalog"
)

// Mirror writes resolved deployments to contract_deployments.
type Mirror struct {
	pool *pgxpool.Pool
}

// NewMirror connects, pings and ensures the schema exists.
func NewMirror(ctx context.Context, dsn string) (*Mirror, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pg dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	m := &Mirror{pool: pool}
	if err := m.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mirror) Close() {
	if m != nil && m.pool != nil {
		m.pool.Close()
	}
}

// Ping checks connectivity.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

func (m *Mirror) migrate(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS contract_deployments (
			protocol   TEXT NOT NULL,
			chain_id   BIGINT NOT NULL,
			contract   TEXT NOT NULL,
			address    TEXT NOT NULL,
			run_id     TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (protocol, chain_id, contract)
		)
	`)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Row is one mirrored contract address.
type Row struct {
	Protocol string
	ChainID  catalog.ChainID
	Contract string
	Address  string
}

// Rows flattens deployments into rows ordered by protocol, chain, contract.
func Rows(deployments []catalog.Deployment) []Row {
	var out []Row
	for _, d := range deployments {
		for c, addr := range d.Contracts {
			out = append(out, Row{Protocol: d.Protocol, ChainID: d.ChainID, Contract: c, Address: addr})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		if a.ChainID != b.ChainID {
			return a.ChainID < b.ChainID
		}
		return a.Contract < b.Contract
	})
	return out
}

// Sync replaces, in one transaction, the rows of every pair in deployments
// and deletes the rows of removed pairs.
func (m *Mirror) Sync(ctx context.Context, runID string, deployments []catalog.Deployment, removed []catalog.Pair) error {
	pairs := make([]catalog.Pair, 0, len(deployments)+len(removed))
	for _, d := range deployments {
		pairs = append(pairs, d.Pair())
	}
	pairs = append(pairs, removed...)
	rows := Rows(deployments)
	if len(pairs) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range pairs {
			batch.Queue(`DELETE FROM contract_deployments WHERE protocol = $1 AND chain_id = $2`, p.Protocol, int64(p.ChainID))
		}
		for _, r := range rows {
			batch.Queue(`
				INSERT INTO contract_deployments (protocol, chain_id, contract, address, run_id, updated_at)
				VALUES ($1, $2, $3, $4, $5, now())
			`, r.Protocol, int64(r.ChainID), r.Contract, r.Address, runID)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("mirror batch: %w", err)
			}
		}
		return br.Close()
	})
}

// Addresses returns the mirrored contracts of one pair.
func (m *Mirror) Addresses(ctx context.Context, p catalog.Pair) (map[string]string, error) {
	rows, err := m.pool.Query(ctx, `
		SELECT contract, address FROM contract_deployments WHERE protocol = $1 AND chain_id = $2
	`, p.Protocol, int64(p.ChainID))
	if err != nil {
		return nil, fmt.Errorf("query mirror: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var c, a string
		if err := rows.Scan(&c, &a); err != nil {
			return nil, fmt.Errorf("scan mirror: %w", err)
		}
		out[c] = a
	}
	return out, rows.Err()
}
