// Package numbering allocates human-readable document numbers.
package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DocType enumerates numbered document kinds.
type DocType string

const (
	DocTypeInvoice DocType = "INV"
	DocTypeBill    DocType = "BIL"
	DocTypeReceipt DocType = "RCT"
)

// Generator hands out per-tenant, per-type sequential numbers backed by a
// counters table, so concurrent allocations never collide.
type Generator struct {
	pool *pgxpool.Pool
}

// NewGenerator constructs a Generator.
func NewGenerator(pool *pgxpool.Pool) *Generator {
	return &Generator{pool: pool}
}

// Next allocates the next number, formatted as e.g. INV-2026-000042.
func (g *Generator) Next(ctx context.Context, docType DocType, tenantID int64, asOf time.Time) (string, error) {
	year := asOf.Year()
	var seq int64
	err := g.pool.QueryRow(ctx, `INSERT INTO document_counters (tenant_id, doc_type, year, last_seq)
VALUES ($1, $2, $3, 1)
ON CONFLICT (tenant_id, doc_type, year) DO UPDATE SET last_seq = document_counters.last_seq + 1
RETURNING last_seq`, tenantID, docType, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("numbering: allocate %s: %w", docType, err)
	}
	return fmt.Sprintf("%s-%d-%06d", docType, year, seq), nil
}
