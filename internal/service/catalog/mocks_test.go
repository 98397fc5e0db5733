package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// catalogRepoMock wraps a real repo and lets single methods be overridden.
type catalogRepoMock struct {
	catalogRepo
	DeleteFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *catalogRepoMock) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return m.catalogRepo.Delete(ctx, id)
}

type loanCounterMock struct {
	CountActiveByItemFunc func(ctx context.Context, itemID uuid.UUID) (int, error)
}

func (m *loanCounterMock) CountActiveByItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	return m.CountActiveByItemFunc(ctx, itemID)
}

type auditLoggerMock struct {
	mu      sync.Mutex
	records []domain.AuditRecord
	LogFunc func(ctx context.Context, record domain.AuditRecord) error
}

func (m *auditLoggerMock) Log(ctx context.Context, record domain.AuditRecord) error {
	if m.LogFunc != nil {
		if err := m.LogFunc(ctx, record); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *auditLoggerMock) Records() []domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditRecord(nil), m.records...)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
