package domain

// LoanState is the single lifecycle state of a loan record.
type LoanState string

const (
	LoanStatePending   LoanState = "PENDING"
	LoanStateApproved  LoanState = "APPROVED"
	LoanStateCollected LoanState = "COLLECTED"
	LoanStateRejected  LoanState = "REJECTED"
	LoanStateReturned  LoanState = "RETURNED"
)

func (s LoanState) String() string { return string(s) }

func (s LoanState) IsValid() bool {
	switch s {
	case LoanStatePending, LoanStateApproved, LoanStateCollected, LoanStateRejected, LoanStateReturned:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is legal from s.
func (s LoanState) IsTerminal() bool {
	return s == LoanStateRejected || s == LoanStateReturned
}

// HoldsCopy reports whether a loan in state s has a copy reserved.
func (s LoanState) HoldsCopy() bool {
	return s == LoanStateApproved || s == LoanStateCollected
}

// CanTransitionTo reports whether the lifecycle allows s -> target.
//
//	PENDING   -> APPROVED | REJECTED
//	APPROVED  -> COLLECTED | RETURNED
//	COLLECTED -> RETURNED
func (s LoanState) CanTransitionTo(target LoanState) bool {
	switch s {
	case LoanStatePending:
		return target == LoanStateApproved || target == LoanStateRejected
	case LoanStateApproved:
		return target == LoanStateCollected || target == LoanStateReturned
	case LoanStateCollected:
		return target == LoanStateReturned
	}
	return false
}

// ActiveLoanStates lists the non-terminal states.
var ActiveLoanStates = []LoanState{LoanStatePending, LoanStateApproved, LoanStateCollected}

// EntityType identifies the kind of domain entity (used in audit logs).
type EntityType string

const (
	EntityTypeLoan        EntityType = "LOAN"
	EntityTypeCatalogItem EntityType = "CATALOG_ITEM"
)

func (e EntityType) String() string { return string(e) }

func (e EntityType) IsValid() bool {
	switch e {
	case EntityTypeLoan, EntityTypeCatalogItem:
		return true
	}
	return false
}

// AuditAction represents the kind of mutation recorded in the audit log.
type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
)

func (a AuditAction) String() string { return string(a) }

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete:
		return true
	}
	return false
}
