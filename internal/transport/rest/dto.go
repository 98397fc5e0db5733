package rest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// ItemResponse is the wire form of a catalog item.
type ItemResponse struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            *string   `json:"isbn,omitempty"`
	Category        *string   `json:"category,omitempty"`
	Description     *string   `json:"description,omitempty"`
	PublishedYear   *int      `json:"published_year,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toItemResponse(it domain.CatalogItem) ItemResponse {
	return ItemResponse{
		ID:              it.ID,
		Title:           it.Title,
		Author:          it.Author,
		ISBN:            it.ISBN,
		Category:        it.Category,
		Description:     it.Description,
		PublishedYear:   it.PublishedYear,
		TotalCopies:     it.TotalCopies,
		AvailableCopies: it.AvailableCopies,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
}

// LoanResponse is the wire form of a loan record. AccruedFine is set only in
// overdue listings.
type LoanResponse struct {
	ID          uuid.UUID        `json:"id"`
	BorrowerID  uuid.UUID        `json:"borrower_id"`
	ItemID      uuid.UUID        `json:"item_id"`
	State       domain.LoanState `json:"state"`
	RequestedAt time.Time        `json:"requested_at"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	DueAt       *time.Time       `json:"due_at,omitempty"`
	CollectedAt *time.Time       `json:"collected_at,omitempty"`
	RejectedAt  *time.Time       `json:"rejected_at,omitempty"`
	ReturnedAt  *time.Time       `json:"returned_at,omitempty"`
	Fine        decimal.Decimal  `json:"fine"`
	AccruedFine *decimal.Decimal `json:"accrued_fine,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func toLoanResponse(l domain.LoanRecord) LoanResponse {
	return LoanResponse{
		ID:          l.ID,
		BorrowerID:  l.BorrowerID,
		ItemID:      l.ItemID,
		State:       l.State,
		RequestedAt: l.RequestedAt,
		ApprovedAt:  l.ApprovedAt,
		DueAt:       l.DueAt,
		CollectedAt: l.CollectedAt,
		RejectedAt:  l.RejectedAt,
		ReturnedAt:  l.ReturnedAt,
		Fine:        l.Fine,
		UpdatedAt:   l.UpdatedAt,
	}
}

// AuditResponse is one audit trail entry.
type AuditResponse struct {
	ID         uuid.UUID          `json:"id"`
	EntityType domain.EntityType  `json:"entity_type"`
	EntityID   uuid.UUID          `json:"entity_id"`
	Action     domain.AuditAction `json:"action"`
	Changes    map[string]any     `json:"changes"`
	CreatedAt  time.Time          `json:"created_at"`
}

func toAuditResponse(a domain.AuditRecord) AuditResponse {
	return AuditResponse{
		ID:         a.ID,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Action:     a.Action,
		Changes:    a.Changes,
		CreatedAt:  a.CreatedAt,
	}
}

// StatsResponse summarises the catalog.
type StatsResponse struct {
	Titles          int `json:"titles"`
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
	ActiveLoans     int `json:"active_loans"`
	OverdueLoans    int `json:"overdue_loans"`
}

type createItemRequest struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          *string `json:"isbn"`
	Category      *string `json:"category"`
	Description   *string `json:"description"`
	PublishedYear *int    `json:"published_year"`
	TotalCopies   int     `json:"total_copies"`
}

type updateItemRequest struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN          *string `json:"isbn"`
	Category      *string `json:"category"`
	Description   *string `json:"description"`
	PublishedYear *int    `json:"published_year"`
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type requestLoanRequest struct {
	BorrowerID uuid.UUID `json:"borrower_id"`
	ItemID     uuid.UUID `json:"item_id"`
}

type issueLoanRequest struct {
	BorrowerID uuid.UUID  `json:"borrower_id"`
	DueAt      *time.Time `json:"due_at"`
}

type approveRequest struct {
	DueAt *time.Time `json:"due_at"`
}

type returnRequest struct {
	ReturnedAt *time.Time `json:"returned_at"`
}
