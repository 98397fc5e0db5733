package lending

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// GetLoan returns one loan record.
func (s *Service) GetLoan(ctx context.Context, loanID uuid.UUID) (domain.LoanRecord, error) {
	return s.loans.GetByID(ctx, loanID)
}

// GetCatalogItem returns one catalog item with its counters.
func (s *Service) GetCatalogItem(ctx context.Context, itemID uuid.UUID) (domain.CatalogItem, error) {
	return s.catalog.GetByID(ctx, itemID)
}

// LoanHistory returns the audit trail of a loan, newest first.
func (s *Service) LoanHistory(ctx context.Context, loanID uuid.UUID) ([]domain.AuditRecord, error) {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	records, err := s.audit.ListByEntity(ctx, domain.EntityTypeLoan, loanID, MaxHistoryRecords)
	if err != nil {
		return nil, fmt.Errorf("loan history: %w", err)
	}
	return records, nil
}

// LoansByBorrower lists a borrower's loans in (requested_at, id) order.
// Pages are fetched as the sequence is consumed; ranging over it again
// starts from the beginning.
func (s *Service) LoansByBorrower(ctx context.Context, borrowerID uuid.UUID) iter.Seq2[domain.LoanRecord, error] {
	return s.paginate(ctx, func(ctx context.Context, page domain.LoanPage) ([]domain.LoanRecord, error) {
		return s.loans.ListByBorrower(ctx, borrowerID, page)
	})
}

// OverdueLoans lists loans holding a copy whose due date is before now, in
// (requested_at, id) order. RETURNED and REJECTED loans never appear.
func (s *Service) OverdueLoans(ctx context.Context, now time.Time) iter.Seq2[domain.LoanRecord, error] {
	return s.paginate(ctx, func(ctx context.Context, page domain.LoanPage) ([]domain.LoanRecord, error) {
		return s.loans.ListOverdue(ctx, now, page)
	})
}

type pageFunc func(ctx context.Context, page domain.LoanPage) ([]domain.LoanRecord, error)

// paginate walks keyset pages. A storage error is yielded once and ends the
// sequence.
func (s *Service) paginate(ctx context.Context, fetch pageFunc) iter.Seq2[domain.LoanRecord, error] {
	return func(yield func(domain.LoanRecord, error) bool) {
		page := domain.LoanPage{Limit: s.cfg.PageSize}
		for {
			loans, err := fetch(ctx, page)
			if err != nil {
				yield(domain.LoanRecord{}, fmt.Errorf("list loans: %w", err))
				return
			}
			for _, l := range loans {
				if !yield(l, nil) {
					return
				}
			}
			if len(loans) < page.Limit {
				return
			}
			c := domain.CursorOf(&loans[len(loans)-1])
			page.After = &c
		}
	}
}

// CollectLoans drains seq into a slice, stopping at the first error.
func CollectLoans(seq iter.Seq2[domain.LoanRecord, error]) ([]domain.LoanRecord, error) {
	var out []domain.LoanRecord
	for l, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
