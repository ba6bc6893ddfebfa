package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// AuditRepository persists the moderation audit trail.
type AuditRepository interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
	ListByGuild(ctx context.Context, guildID string, limit int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository instantiates the repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Record(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_log (id, guild_id, actor_id, subject_id, action, detail)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.GuildID,
		entry.ActorID,
		entry.SubjectID,
		entry.Action,
		entry.Detail,
	).Scan(&entry.CreatedAt)
}

func (r *auditRepository) ListByGuild(ctx context.Context, guildID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `
        SELECT id, guild_id, actor_id, subject_id, action, detail, created_at
        FROM audit_log WHERE guild_id=$1
        ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var createdAt time.Time
		if err := rows.Scan(&entry.ID, &entry.GuildID, &entry.ActorID, &entry.SubjectID, &entry.Action, &entry.Detail, &createdAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = createdAt
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
