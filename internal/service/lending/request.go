package lending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// RequestLoan creates a PENDING loan for borrowerID on itemID.
func (s *Service) RequestLoan(ctx context.Context, borrowerID, itemID uuid.UUID) (domain.LoanRecord, error) {
	ctx, span := startSpan(ctx, "RequestLoan",
		attribute.String("borrower.id", borrowerID.String()),
		attribute.String("item.id", itemID.String()),
	)

	var loan domain.LoanRecord
	err := validateIDs(borrowerID, itemID)
	if err == nil {
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			var createErr error
			loan, createErr = s.create(txCtx, borrowerID, itemID, s.Now())
			return createErr
		})
	}
	endSpan(span, err)

	if err != nil {
		s.logFailure(ctx, "RequestLoan", err, slog.String("item_id", itemID.String()))
		return domain.LoanRecord{}, err
	}

	s.log.InfoContext(ctx, "loan requested",
		slog.String("loan_id", loan.ID.String()),
		slog.String("borrower_id", borrowerID.String()),
		slog.String("item_id", itemID.String()),
	)
	return loan, nil
}

// IssueLoanInput holds the parameters for a direct issue.
type IssueLoanInput struct {
	BorrowerID uuid.UUID
	ItemID     uuid.UUID
	DueAt      *time.Time
}

// IssueLoan requests and approves a loan in one transaction, for a desk
// operator handing a copy over directly. Fails with domain.ErrOutOfStock
// without leaving a PENDING record behind.
func (s *Service) IssueLoan(ctx context.Context, input IssueLoanInput) (domain.LoanRecord, error) {
	ctx, span := startSpan(ctx, "IssueLoan",
		attribute.String("borrower.id", input.BorrowerID.String()),
		attribute.String("item.id", input.ItemID.String()),
	)

	var loan domain.LoanRecord
	err := validateIDs(input.BorrowerID, input.ItemID)
	if err == nil {
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			pending, err := s.create(txCtx, input.BorrowerID, input.ItemID, s.Now())
			if err != nil {
				return err
			}
			loan, err = s.apply(txCtx, pending, s.approveStep(input.DueAt))
			return err
		})
	}
	endSpan(span, err)

	if err != nil {
		s.logFailure(ctx, "IssueLoan", err, slog.String("item_id", input.ItemID.String()))
		return domain.LoanRecord{}, err
	}

	s.log.InfoContext(ctx, "loan issued",
		slog.String("loan_id", loan.ID.String()),
		slog.String("borrower_id", input.BorrowerID.String()),
		slog.String("item_id", input.ItemID.String()),
		slog.Time("due_at", *loan.DueAt),
	)
	return loan, nil
}

// create inserts a PENDING record. The item row is locked so it cannot be
// removed while the request is being recorded.
func (s *Service) create(ctx context.Context, borrowerID, itemID uuid.UUID, now time.Time) (domain.LoanRecord, error) {
	if _, err := s.catalog.GetByIDForUpdate(ctx, itemID); err != nil {
		return domain.LoanRecord{}, fmt.Errorf("get item: %w", err)
	}

	loan, err := s.loans.Create(ctx, domain.LoanRecord{
		ID:          s.newID(),
		BorrowerID:  borrowerID,
		ItemID:      itemID,
		State:       domain.LoanStatePending,
		RequestedAt: now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.LoanRecord{}, fmt.Errorf("create loan: %w", err)
	}

	err = s.audit.Log(ctx, domain.AuditRecord{
		EntityType: domain.EntityTypeLoan,
		EntityID:   loan.ID,
		Action:     domain.AuditActionCreate,
		Changes: map[string]any{
			"state":       map[string]any{"new": loan.State.String()},
			"borrower_id": borrowerID.String(),
			"item_id":     itemID.String(),
		},
		CreatedAt: now,
	})
	if err != nil {
		return domain.LoanRecord{}, fmt.Errorf("audit log: %w", err)
	}

	return loan, nil
}

func validateIDs(borrowerID, itemID uuid.UUID) error {
	var errs []domain.FieldError
	if borrowerID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "borrower_id", Message: "required"})
	}
	if itemID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "item_id", Message: "required"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}
