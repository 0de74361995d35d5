package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/parimutuel-markets/internal/models"
	"github.com/ayo6706/parimutuel-markets/internal/repository"
	"github.com/google/uuid"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record on the caller's transaction.
func (s *AuditService) Write(ctx context.Context, q repository.Querier, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action, prevState, nextState string, metadata []byte) error {
	if _, err := q.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		PrevState:  textParam(prevState),
		NextState:  textParam(nextState),
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// History lists the trail of one entity, oldest first.
func (s *AuditService) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditEntry, error) {
	entries, err := s.store.Queries().ListAuditLog(ctx, entityType, entityID)
	if err != nil {
		return nil, storageError("list audit log", err)
	}
	return entries, nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
