// Package lending runs the loan lifecycle. Every transition changes the loan
// record and the catalog counters in one transaction, or changes neither.
package lending

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heartmarshall/circulation-backend/internal/domain"
	"github.com/heartmarshall/circulation-backend/internal/service/lending/fine"
)

type catalogRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error)
	Reserve(ctx context.Context, id uuid.UUID, at time.Time) error
	Release(ctx context.Context, id uuid.UUID, at time.Time) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int, at time.Time) (domain.CatalogItem, error)
}

type loanRepo interface {
	Create(ctx context.Context, l domain.LoanRecord) (domain.LoanRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error)
	Transition(ctx context.Context, id uuid.UUID, target domain.LoanState, eff domain.LoanEffects) (domain.LoanRecord, error)
	ListByBorrower(ctx context.Context, borrowerID uuid.UUID, page domain.LoanPage) ([]domain.LoanRecord, error)
	ListOverdue(ctx context.Context, now time.Time, page domain.LoanPage) ([]domain.LoanRecord, error)
}

type auditRepo interface {
	Log(ctx context.Context, record domain.AuditRecord) error
	ListByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TimePrecision is the resolution loan timestamps are kept at. It matches
// PostgreSQL timestamptz, so a record reads back exactly as it was written.
const TimePrecision = time.Microsecond

const (
	DefaultLoanPeriod = 15 * 24 * time.Hour
	DefaultPageSize   = 100
	MaxHistoryRecords = 200
)

var tracer = otel.Tracer("github.com/heartmarshall/circulation-backend/internal/service/lending")

// Config holds circulation rules.
type Config struct {
	LoanPeriod    time.Duration
	DailyFineRate decimal.Decimal
	PageSize      int
}

// DefaultConfig returns a 15-day loan period at fine.DefaultDailyRate.
func DefaultConfig() Config {
	return Config{
		LoanPeriod:    DefaultLoanPeriod,
		DailyFineRate: fine.DefaultDailyRate,
		PageSize:      DefaultPageSize,
	}
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the loan id source (UUIDv7 by default).
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Service) { s.newID = gen }
}

// Service provides the lending workflow.
type Service struct {
	catalog catalogRepo
	loans   loanRepo
	audit   auditRepo
	tx      txManager
	log     *slog.Logger
	cfg     Config
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewService creates a new lending service. Non-positive config values, and a
// fine rate with more than fine.Scale decimal places, fall back to
// DefaultConfig.
func NewService(
	log *slog.Logger,
	cfg Config,
	catalog catalogRepo,
	loans loanRepo,
	audit auditRepo,
	tx txManager,
	opts ...Option,
) *Service {
	if cfg.LoanPeriod <= 0 {
		cfg.LoanPeriod = DefaultLoanPeriod
	}
	if !fine.ValidRate(cfg.DailyFineRate) {
		cfg.DailyFineRate = fine.DefaultDailyRate
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	s := &Service{
		catalog: catalog,
		loans:   loans,
		audit:   audit,
		tx:      tx,
		log:     log.With("service", "lending"),
		cfg:     cfg,
		now:     time.Now,
		newID:   func() uuid.UUID { return uuid.Must(uuid.NewV7()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock reading in UTC, truncated to TimePrecision.
func (s *Service) Now() time.Time {
	return s.now().UTC().Truncate(TimePrecision)
}

// DailyFineRate returns the configured per-day fine.
func (s *Service) DailyFineRate() decimal.Decimal {
	return s.cfg.DailyFineRate
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lending."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// logFailure reports err. Inventory desync is an ERROR; expected business
// outcomes stay at DEBUG; anything else is left to the caller.
func (s *Service) logFailure(ctx context.Context, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, domain.ErrOverrelease):
		s.log.ErrorContext(ctx, "inventory invariant violated",
			append(attrs,
				slog.String("op", op),
				slog.String("invariant", "inventory_overrelease"),
				slog.String("error", err.Error()),
			)...,
		)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrValidation):
		s.log.DebugContext(ctx, op+" refused", append(attrs, slog.String("reason", err.Error()))...)
	}
}
