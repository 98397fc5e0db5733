package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// AuditRepo is the in-memory audit log.
type AuditRepo struct {
	s *Store
}

// Log appends an audit record.
func (r *AuditRepo) Log(ctx context.Context, record domain.AuditRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.Must(uuid.NewV7())
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return r.s.exclusive(ctx, func(t *tx) error {
		r.s.appendAudit(t, record)
		return nil
	})
}

// ListByEntity returns the change history for an entity, newest first.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	err := r.s.exclusive(ctx, func(*tx) error {
		for i := len(r.s.audit) - 1; i >= 0; i-- {
			rec := r.s.audit[i]
			if rec.EntityType == entityType && rec.EntityID == entityID {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(out, func(a, b domain.AuditRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
