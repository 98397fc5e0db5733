package lending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heartmarshall/circulation-backend/internal/domain"
	"github.com/heartmarshall/circulation-backend/internal/service/lending/fine"
)

// step describes one loan transition and the inventory change paired with it.
type step struct {
	op        string
	target    domain.LoanState
	effects   func(l domain.LoanRecord, now time.Time) domain.LoanEffects
	inventory func(ctx context.Context, l domain.LoanRecord, now time.Time) error
}

// Approve reserves a copy and moves a PENDING loan to APPROVED. DueAt is
// now + LoanPeriod unless dueAt is given. Approving an APPROVED loan returns
// it unchanged.
func (s *Service) Approve(ctx context.Context, loanID uuid.UUID, dueAt *time.Time) (domain.LoanRecord, error) {
	return s.run(ctx, loanID, s.approveStep(dueAt))
}

// Reject moves a PENDING loan to REJECTED. No inventory change.
func (s *Service) Reject(ctx context.Context, loanID uuid.UUID) (domain.LoanRecord, error) {
	return s.run(ctx, loanID, step{
		op:     "Reject",
		target: domain.LoanStateRejected,
	})
}

// MarkCollected records that the borrower picked up an APPROVED loan.
func (s *Service) MarkCollected(ctx context.Context, loanID uuid.UUID) (domain.LoanRecord, error) {
	return s.run(ctx, loanID, step{
		op:     "MarkCollected",
		target: domain.LoanStateCollected,
	})
}

// ReturnItem computes the fine, moves the loan to RETURNED and puts the copy
// back. returnedAt defaults to now. Returning a RETURNED loan returns it
// unchanged with its original fine.
func (s *Service) ReturnItem(ctx context.Context, loanID uuid.UUID, returnedAt *time.Time) (domain.LoanRecord, error) {
	return s.run(ctx, loanID, step{
		op:     "ReturnItem",
		target: domain.LoanStateReturned,
		effects: func(l domain.LoanRecord, now time.Time) domain.LoanEffects {
			at := now
			if returnedAt != nil {
				at = returnedAt.UTC().Truncate(TimePrecision)
			}
			eff := domain.LoanEffects{At: at}
			if l.DueAt != nil {
				eff.Fine = fine.Compute(*l.DueAt, at, s.cfg.DailyFineRate)
			}
			return eff
		},
		inventory: func(ctx context.Context, l domain.LoanRecord, now time.Time) error {
			if err := s.catalog.Release(ctx, l.ItemID, now); err != nil {
				return fmt.Errorf("release copy: %w", err)
			}
			return nil
		},
	})
}

func (s *Service) approveStep(dueAt *time.Time) step {
	return step{
		op:     "Approve",
		target: domain.LoanStateApproved,
		effects: func(_ domain.LoanRecord, now time.Time) domain.LoanEffects {
			due := now.Add(s.cfg.LoanPeriod)
			if dueAt != nil {
				due = dueAt.UTC()
			}
			return domain.LoanEffects{At: now, DueAt: due.Truncate(TimePrecision)}
		},
		inventory: func(ctx context.Context, l domain.LoanRecord, now time.Time) error {
			if err := s.catalog.Reserve(ctx, l.ItemID, now); err != nil {
				return fmt.Errorf("reserve copy: %w", err)
			}
			return nil
		},
	}
}

// run applies st to one loan inside a transaction.
func (s *Service) run(ctx context.Context, loanID uuid.UUID, st step) (domain.LoanRecord, error) {
	ctx, span := startSpan(ctx, st.op, attribute.String("loan.id", loanID.String()))

	var (
		result  domain.LoanRecord
		changed bool
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.loans.GetByIDForUpdate(txCtx, loanID)
		if err != nil {
			return err
		}
		if current.State == st.target {
			result = current
			return nil
		}

		result, err = s.apply(txCtx, current, st)
		changed = err == nil
		return err
	})
	endSpan(span, err)

	attrs := []any{slog.String("loan_id", loanID.String())}
	if err != nil {
		s.logFailure(ctx, st.op, err, attrs...)
		return domain.LoanRecord{}, err
	}

	if !changed {
		s.log.DebugContext(ctx, "loan already in target state", append(attrs, slog.String("state", result.State.String()))...)
		return result, nil
	}

	attrs = append(attrs,
		slog.String("item_id", result.ItemID.String()),
		slog.String("state", result.State.String()),
	)
	if result.State == domain.LoanStateReturned {
		attrs = append(attrs, slog.String("fine", result.Fine.String()))
	}
	s.log.InfoContext(ctx, "loan "+st.op, attrs...)
	return result, nil
}

// apply validates st against current, performs the inventory change, then
// persists the transition and its audit record. It must run inside a
// transaction: a failure at any point leaves the caller to roll back.
func (s *Service) apply(ctx context.Context, current domain.LoanRecord, st step) (domain.LoanRecord, error) {
	now := s.Now()

	var eff domain.LoanEffects
	if st.effects != nil {
		eff = st.effects(current, now)
	} else {
		eff = domain.LoanEffects{At: now}
	}

	// Refuse before touching inventory.
	if _, err := current.Transition(st.target, eff); err != nil {
		return domain.LoanRecord{}, fmt.Errorf("loan %s: %w", current.ID, err)
	}

	if st.inventory != nil {
		if err := st.inventory(ctx, current, now); err != nil {
			return domain.LoanRecord{}, err
		}
	}

	next, err := s.loans.Transition(ctx, current.ID, st.target, eff)
	if err != nil {
		return domain.LoanRecord{}, fmt.Errorf("transition loan: %w", err)
	}

	if err := s.audit.Log(ctx, transitionAudit(current, next, now)); err != nil {
		return domain.LoanRecord{}, fmt.Errorf("audit log: %w", err)
	}

	return next, nil
}

func transitionAudit(prev, next domain.LoanRecord, at time.Time) domain.AuditRecord {
	changes := map[string]any{
		"state": map[string]any{"old": prev.State.String(), "new": next.State.String()},
	}
	if next.DueAt != nil && prev.DueAt == nil {
		changes["due_at"] = map[string]any{"new": next.DueAt.Format(time.RFC3339)}
	}
	if next.State == domain.LoanStateReturned {
		changes["fine"] = map[string]any{"new": next.Fine.String()}
	}
	return domain.AuditRecord{
		EntityType: domain.EntityTypeLoan,
		EntityID:   next.ID,
		Action:     domain.AuditActionUpdate,
		Changes:    changes,
		CreatedAt:  at,
	}
}
