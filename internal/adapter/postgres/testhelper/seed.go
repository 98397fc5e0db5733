package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedItem creates a catalog item with the given number of copies, all available.
func SeedItem(t *testing.T, pool *pgxpool.Pool, copies int) domain.CatalogItem {
	t.Helper()
	ctx := context.Background()

	suffix := uniqueSuffix()
	now := time.Now().UTC().Truncate(time.Microsecond)
	item := domain.CatalogItem{
		ID:              uuid.New(),
		Title:           "Test Title " + suffix,
		Author:          "Test Author " + suffix,
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO catalog_items (id, title, author, total_copies, available_copies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.Title, item.Author, item.TotalCopies, item.AvailableCopies, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedItem: %v", err)
	}

	return item
}

// SeedLoan creates a PENDING loan for itemID requested at requestedAt.
func SeedLoan(t *testing.T, pool *pgxpool.Pool, borrowerID, itemID uuid.UUID, requestedAt time.Time) domain.LoanRecord {
	t.Helper()
	ctx := context.Background()

	at := requestedAt.UTC().Truncate(time.Microsecond)
	loan := domain.LoanRecord{
		ID:          uuid.Must(uuid.NewV7()),
		BorrowerID:  borrowerID,
		ItemID:      itemID,
		State:       domain.LoanStatePending,
		RequestedAt: at,
		UpdatedAt:   at,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO loans (id, borrower_id, item_id, state, requested_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		loan.ID, loan.BorrowerID, loan.ItemID, string(loan.State), loan.RequestedAt, loan.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedLoan: %v", err)
	}

	return loan
}
