package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres"
	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres/audit"
	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/circulation-backend/internal/domain"
)

func newRepo(t *testing.T) *audit.Repo {
	t.Helper()
	return audit.New(testhelper.SetupTestDB(t))
}

func TestRepo_LogAndList(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)
	ctx := context.Background()

	loanID := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, state := range []string{"APPROVED", "RETURNED"} {
		err := repo.Log(ctx, domain.AuditRecord{
			EntityType: domain.EntityTypeLoan,
			EntityID:   loanID,
			Action:     domain.AuditActionUpdate,
			Changes:    map[string]any{"state": map[string]any{"new": state}},
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Log: unexpected error: %v", err)
		}
	}

	got, err := repo.ListByEntity(ctx, domain.EntityTypeLoan, loanID, 10)
	if err != nil {
		t.Fatalf("ListByEntity: unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	newest, ok := got[0].Changes["state"].(map[string]any)
	if !ok || newest["new"] != "RETURNED" {
		t.Errorf("expected newest first with state RETURNED, got %v", got[0].Changes)
	}
	if got[0].ID == uuid.Nil {
		t.Error("expected generated ID")
	}
}

func TestRepo_ListByEntity_Empty(t *testing.T) {
	t.Parallel()
	repo := newRepo(t)

	got, err := repo.ListByEntity(context.Background(), domain.EntityTypeCatalogItem, uuid.New(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestRepo_Log_RolledBackWithTx(t *testing.T) {
	t.Parallel()
	pool := testhelper.SetupTestDB(t)
	repo := audit.New(pool)
	tm := postgres.NewTxManager(pool)
	itemID := uuid.New()

	_ = tm.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := repo.Log(ctx, domain.AuditRecord{
			EntityType: domain.EntityTypeCatalogItem,
			EntityID:   itemID,
			Action:     domain.AuditActionCreate,
		}); err != nil {
			t.Fatalf("Log: %v", err)
		}
		return context.Canceled
	})

	got, err := repo.ListByEntity(context.Background(), domain.EntityTypeCatalogItem, itemID, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected rollback to discard audit record, got %d", len(got))
	}
}
