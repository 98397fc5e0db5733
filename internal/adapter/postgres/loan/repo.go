// Package loan implements the loan record repository using PostgreSQL.
// Records are never deleted; state changes go through Transition.
package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	postgres "github.com/heartmarshall/circulation-backend/internal/adapter/postgres"
	"github.com/heartmarshall/circulation-backend/internal/domain"
)

const entity = "loan"

var loanColumns = []string{
	"id", "borrower_id", "item_id", "state", "requested_at", "approved_at", "due_at",
	"collected_at", "rejected_at", "returned_at", "fine", "updated_at",
}

// Repo provides loan record persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new loan repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a loan record.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate returns a loan record and locks its row until the
// surrounding transaction ends.
func (r *Repo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error) {
	return r.get(ctx, id, true)
}

func (r *Repo) get(ctx context.Context, id uuid.UUID, lock bool) (domain.LoanRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	query := postgres.Builder().
		Select(loanColumns...).
		From("loans").
		Where(squirrel.Eq{"id": id})
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return domain.LoanRecord{}, fmt.Errorf("build loan query: %w", err)
	}

	var row loanRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return domain.LoanRecord{}, postgres.MapError(err, entity, id)
	}
	return row.toDomain(), nil
}

// ListByBorrower returns one keyset page of a borrower's loans in
// (requested_at, id) order.
func (r *Repo) ListByBorrower(ctx context.Context, borrowerID uuid.UUID, page domain.LoanPage) ([]domain.LoanRecord, error) {
	query := postgres.Builder().
		Select(loanColumns...).
		From("loans").
		Where(squirrel.Eq{"borrower_id": borrowerID})

	return r.listPage(ctx, query, page)
}

// ListOverdue returns one keyset page of loans holding a copy whose due date
// is strictly before now, in (requested_at, id) order.
func (r *Repo) ListOverdue(ctx context.Context, now time.Time, page domain.LoanPage) ([]domain.LoanRecord, error) {
	query := postgres.Builder().
		Select(loanColumns...).
		From("loans").
		Where(squirrel.Eq{"state": holdingStates()}).
		Where(squirrel.Lt{"due_at": now})

	return r.listPage(ctx, query, page)
}

// CountActiveByItem counts non-terminal loans referencing itemID.
func (r *Repo) CountActiveByItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	sql, args, err := postgres.Builder().
		Select("count(*)").
		From("loans").
		Where(squirrel.Eq{"item_id": itemID, "state": activeStates()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build active loan count: %w", err)
	}

	var n int
	if err := q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active loans for item %s: %w", itemID, err)
	}
	return n, nil
}

func (r *Repo) listPage(ctx context.Context, query squirrel.SelectBuilder, page domain.LoanPage) ([]domain.LoanRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	if page.After != nil {
		query = query.Where(squirrel.Expr("(requested_at, id) > (?, ?)", page.After.RequestedAt, page.After.ID))
	}
	query = query.OrderBy("requested_at ASC", "id ASC")
	if page.Limit > 0 {
		query = query.Limit(uint64(page.Limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build loan page query: %w", err)
	}

	var rows []loanRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	loans := make([]domain.LoanRecord, len(rows))
	for i, row := range rows {
		loans[i] = row.toDomain()
	}
	return loans, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a new PENDING loan record.
func (r *Repo) Create(ctx context.Context, l domain.LoanRecord) (domain.LoanRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	if l.State != domain.LoanStatePending {
		return domain.LoanRecord{}, fmt.Errorf("%s %s: created in state %s: %w", entity, l.ID, l.State, domain.ErrInvalidTransition)
	}

	_, err := q.Exec(ctx, `
		INSERT INTO loans (id, borrower_id, item_id, state, requested_at, fine, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.BorrowerID, l.ItemID, string(l.State), l.RequestedAt, decimal.Zero, l.UpdatedAt,
	)
	if err != nil {
		return domain.LoanRecord{}, postgres.MapError(err, entity, l.ID)
	}
	l.Fine = decimal.Zero
	return l, nil
}

// Transition locks the record, applies the lifecycle rule and persists the
// result. Returns domain.ErrInvalidTransition when the rule refuses.
func (r *Repo) Transition(ctx context.Context, id uuid.UUID, target domain.LoanState, eff domain.LoanEffects) (domain.LoanRecord, error) {
	current, err := r.GetByIDForUpdate(ctx, id)
	if err != nil {
		return domain.LoanRecord{}, err
	}

	next, err := current.Transition(target, eff)
	if err != nil {
		return domain.LoanRecord{}, fmt.Errorf("%s %s: %w", entity, id, err)
	}

	q := postgres.QuerierFromCtx(ctx, r.db)
	tag, err := q.Exec(ctx, `
		UPDATE loans
		SET state = $3, approved_at = $4, due_at = $5, collected_at = $6,
			rejected_at = $7, returned_at = $8, fine = $9, updated_at = $10
		WHERE id = $1 AND state = $2`,
		id, string(current.State), string(next.State), next.ApprovedAt, next.DueAt, next.CollectedAt,
		next.RejectedAt, next.ReturnedAt, next.Fine, next.UpdatedAt,
	)
	if err != nil {
		return domain.LoanRecord{}, postgres.MapError(err, entity, id)
	}
	if tag.RowsAffected() == 0 {
		return domain.LoanRecord{}, fmt.Errorf("%s %s: state changed concurrently: %w", entity, id, domain.ErrConflict)
	}
	return next, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

type loanRow struct {
	ID          uuid.UUID       `db:"id"`
	BorrowerID  uuid.UUID       `db:"borrower_id"`
	ItemID      uuid.UUID       `db:"item_id"`
	State       string          `db:"state"`
	RequestedAt time.Time       `db:"requested_at"`
	ApprovedAt  *time.Time      `db:"approved_at"`
	DueAt       *time.Time      `db:"due_at"`
	CollectedAt *time.Time      `db:"collected_at"`
	RejectedAt  *time.Time      `db:"rejected_at"`
	ReturnedAt  *time.Time      `db:"returned_at"`
	Fine        decimal.Decimal `db:"fine"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (row loanRow) toDomain() domain.LoanRecord {
	return domain.LoanRecord{
		ID:          row.ID,
		BorrowerID:  row.BorrowerID,
		ItemID:      row.ItemID,
		State:       domain.LoanState(row.State),
		RequestedAt: row.RequestedAt.UTC(),
		ApprovedAt:  utcPtr(row.ApprovedAt),
		DueAt:       utcPtr(row.DueAt),
		CollectedAt: utcPtr(row.CollectedAt),
		RejectedAt:  utcPtr(row.RejectedAt),
		ReturnedAt:  utcPtr(row.ReturnedAt),
		Fine:        row.Fine,
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func activeStates() []string {
	return statesToStrings(domain.ActiveLoanStates)
}

func holdingStates() []string {
	return []string{string(domain.LoanStateApproved), string(domain.LoanStateCollected)}
}

func statesToStrings(states []domain.LoanState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
