package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanRecord is one borrower's claim on one copy of a catalog item.
// Records are never deleted; REJECTED and RETURNED are kept as history.
type LoanRecord struct {
	ID          uuid.UUID
	BorrowerID  uuid.UUID
	ItemID      uuid.UUID
	State       LoanState
	RequestedAt time.Time
	ApprovedAt  *time.Time
	DueAt       *time.Time
	CollectedAt *time.Time
	RejectedAt  *time.Time
	ReturnedAt  *time.Time
	Fine        decimal.Decimal
	UpdatedAt   time.Time
}

// LoanEffects carries the values a transition stamps onto the record.
// At is the transition time. DueAt is used by APPROVED, Fine by RETURNED.
type LoanEffects struct {
	At    time.Time
	DueAt time.Time
	Fine  decimal.Decimal
}

// IsOverdue reports whether the loan still holds (or is about to hold) a copy
// and its due date is strictly before now.
func (l *LoanRecord) IsOverdue(now time.Time) bool {
	if l.State.IsTerminal() || l.DueAt == nil {
		return false
	}
	return l.DueAt.Before(now)
}

// Transition returns a copy of l moved to target with effects applied.
// l itself is not modified.
func (l LoanRecord) Transition(target LoanState, eff LoanEffects) (LoanRecord, error) {
	if !l.State.CanTransitionTo(target) {
		return l, &TransitionError{From: l.State, To: target}
	}

	at := eff.At.UTC()
	next := l
	next.State = target
	next.UpdatedAt = at

	switch target {
	case LoanStateApproved:
		if eff.DueAt.IsZero() {
			return l, NewValidationError("due_at", "required")
		}
		if !eff.DueAt.After(at) {
			return l, NewValidationError("due_at", "must be after approval time")
		}
		due := eff.DueAt.UTC()
		next.ApprovedAt = &at
		next.DueAt = &due
	case LoanStateCollected:
		next.CollectedAt = &at
	case LoanStateRejected:
		next.RejectedAt = &at
	case LoanStateReturned:
		if l.ApprovedAt != nil && at.Before(*l.ApprovedAt) {
			return l, NewValidationError("returned_at", "must not be before approval time")
		}
		if eff.Fine.IsNegative() {
			return l, NewValidationError("fine", "must not be negative")
		}
		if eff.Fine.IsPositive() && (l.DueAt == nil || !at.After(*l.DueAt)) {
			return l, NewValidationError("fine", "only late returns are fined")
		}
		next.ReturnedAt = &at
		next.Fine = eff.Fine
	}

	return next, nil
}

// LoanCursor is a keyset position in (requested_at, id) order.
type LoanCursor struct {
	RequestedAt time.Time
	ID          uuid.UUID
}

// Before reports whether c sorts strictly before l. UUIDs compare bytewise,
// matching PostgreSQL's uuid ordering.
func (c LoanCursor) Before(l *LoanRecord) bool {
	if l.RequestedAt.Equal(c.RequestedAt) {
		return bytes.Compare(c.ID[:], l.ID[:]) < 0
	}
	return c.RequestedAt.Before(l.RequestedAt)
}

// CursorOf returns the keyset position of l.
func CursorOf(l *LoanRecord) LoanCursor {
	return LoanCursor{RequestedAt: l.RequestedAt, ID: l.ID}
}

// LoanPage requests one keyset page. A nil After starts from the beginning.
type LoanPage struct {
	After *LoanCursor
	Limit int
}
