package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/google/uuid"
)

type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   json.RawMessage
}

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, `INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		arg.EntityType, arg.EntityID, arg.ActorID, arg.Action, arg.PrevState, arg.NextState, nullableJSON(arg.Metadata)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert audit log: %w", err)
	}
	return id, nil
}

func (q *Queries) ListAuditLog(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEntry, error) {
	rows, err := q.db.Query(ctx, `SELECT id, entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at
		FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY id`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.ActorID, &e.Action,
			&e.PrevState, &e.NextState, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(meta) > 0 {
			e.Metadata = json.RawMessage(meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
