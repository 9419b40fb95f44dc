package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureexam/portal-backend/internal/model"
)

// AuditRepository persists audit entries.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// InsertBatch writes a batch of audit entries in one round trip.
func (r *AuditRepository) InsertBatch(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO audit_logs (user_id, action, resource_type, resource_id,
			                         outcome, reason, ip_address, ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.UserID, e.Action, e.ResourceType, e.ResourceID,
			e.Outcome, e.Reason, e.IPAddress, e.Timestamp)
	}
	return translate(r.pool.SendBatch(ctx, batch).Close())
}

// ListRecent retrieves the most recent audit entries, newest first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, action, resource_type, resource_id, outcome, reason, ip_address, ts
		 FROM audit_logs ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.Outcome, &e.Reason, &e.IPAddress, &e.Timestamp); err != nil {
			return nil, translate(err)
		}
		entries = append(entries, e)
	}
	return entries, translate(rows.Err())
}
