package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

const loanEntity = "loan"

// LoanRepo is the in-memory loan record repository.
type LoanRepo struct {
	s *Store
}

// GetByID returns a loan record.
func (r *LoanRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error) {
	var l domain.LoanRecord
	err := r.s.exclusive(ctx, func(*tx) error {
		var err error
		l, err = r.s.loan(id)
		return err
	})
	return l, err
}

// GetByIDForUpdate returns a loan record. The store is already serialised,
// so no extra lock is taken.
func (r *LoanRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.LoanRecord, error) {
	return r.GetByID(ctx, id)
}

// Create inserts a new PENDING loan record.
func (r *LoanRepo) Create(ctx context.Context, l domain.LoanRecord) (domain.LoanRecord, error) {
	if l.State != domain.LoanStatePending {
		return domain.LoanRecord{}, fmt.Errorf("%s %s: created in state %s: %w", loanEntity, l.ID, l.State, domain.ErrInvalidTransition)
	}
	l.Fine = decimal.Zero
	err := r.s.exclusive(ctx, func(t *tx) error {
		if _, ok := r.s.loans[l.ID]; ok {
			return fmt.Errorf("%s %s: %w", loanEntity, l.ID, domain.ErrAlreadyExists)
		}
		r.s.putLoan(t, l)
		return nil
	})
	if err != nil {
		return domain.LoanRecord{}, err
	}
	return l, nil
}

// Transition applies the lifecycle rule and persists the result.
func (r *LoanRepo) Transition(ctx context.Context, id uuid.UUID, target domain.LoanState, eff domain.LoanEffects) (domain.LoanRecord, error) {
	var next domain.LoanRecord
	err := r.s.exclusive(ctx, func(t *tx) error {
		current, err := r.s.loan(id)
		if err != nil {
			return err
		}
		next, err = current.Transition(target, eff)
		if err != nil {
			return fmt.Errorf("%s %s: %w", loanEntity, id, err)
		}
		r.s.putLoan(t, next)
		return nil
	})
	if err != nil {
		return domain.LoanRecord{}, err
	}
	return next, nil
}

// ListByBorrower returns one keyset page of a borrower's loans in
// (requested_at, id) order.
func (r *LoanRepo) ListByBorrower(ctx context.Context, borrowerID uuid.UUID, page domain.LoanPage) ([]domain.LoanRecord, error) {
	return r.page(ctx, page, func(l *domain.LoanRecord) bool {
		return l.BorrowerID == borrowerID
	})
}

// ListOverdue returns one keyset page of loans holding a copy whose due date
// is strictly before now.
func (r *LoanRepo) ListOverdue(ctx context.Context, now time.Time, page domain.LoanPage) ([]domain.LoanRecord, error) {
	return r.page(ctx, page, func(l *domain.LoanRecord) bool {
		return l.State.HoldsCopy() && l.IsOverdue(now)
	})
}

// CountActiveByItem counts non-terminal loans referencing itemID.
func (r *LoanRepo) CountActiveByItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	var n int
	err := r.s.exclusive(ctx, func(*tx) error {
		for _, l := range r.s.loans {
			if l.ItemID == itemID && !l.State.IsTerminal() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *LoanRepo) page(ctx context.Context, page domain.LoanPage, match func(*domain.LoanRecord) bool) ([]domain.LoanRecord, error) {
	var out []domain.LoanRecord
	err := r.s.exclusive(ctx, func(*tx) error {
		for _, l := range r.s.loans {
			if !match(&l) {
				continue
			}
			if page.After != nil && !page.After.Before(&l) {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, compareLoans)
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func compareLoans(a, b domain.LoanRecord) int {
	if c := a.RequestedAt.Compare(b.RequestedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

func (s *Store) loan(id uuid.UUID) (domain.LoanRecord, error) {
	l, ok := s.loans[id]
	if !ok {
		return domain.LoanRecord{}, fmt.Errorf("%s %s: %w", loanEntity, id, domain.ErrNotFound)
	}
	return l, nil
}
