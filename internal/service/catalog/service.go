package catalog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

type catalogRepo interface {
	Create(ctx context.Context, item domain.CatalogItem) (domain.CatalogItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error)
	List(ctx context.Context, filter domain.CatalogFilter) ([]domain.CatalogItem, error)
	Update(ctx context.Context, item domain.CatalogItem) (domain.CatalogItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, now time.Time) (domain.CatalogStats, error)
}

type loanCounter interface {
	CountActiveByItem(ctx context.Context, itemID uuid.UUID) (int, error)
}

type auditLogger interface {
	Log(ctx context.Context, record domain.AuditRecord) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Service provides catalog management operations.
type Service struct {
	items catalogRepo
	loans loanCounter
	audit auditLogger
	tx    txManager
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a new catalog service.
func NewService(
	log *slog.Logger,
	items catalogRepo,
	loans loanCounter,
	audit auditLogger,
	tx txManager,
) *Service {
	return &Service{
		items: items,
		loans: loans,
		audit: audit,
		tx:    tx,
		log:   log.With("service", "catalog"),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// trimOrNil trims whitespace. Returns nil if result is empty.
func trimOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
