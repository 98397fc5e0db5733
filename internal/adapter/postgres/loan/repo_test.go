package loan_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres"
	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres/loan"
	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/circulation-backend/internal/domain"
)

func newRepo(t *testing.T) (*loan.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return loan.New(pool), pool
}

func TestRepo_CreateAndGet(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	item := testhelper.SeedItem(t, pool, 1)

	now := time.Now().UTC().Truncate(time.Microsecond)
	input := domain.LoanRecord{
		ID:          uuid.Must(uuid.NewV7()),
		BorrowerID:  uuid.New(),
		ItemID:      item.ID,
		State:       domain.LoanStatePending,
		RequestedAt: now,
		UpdatedAt:   now,
	}

	_, err := repo.Create(ctx, input)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, input.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatePending, got.State)
	assert.True(t, got.RequestedAt.Equal(now))
	assert.True(t, got.Fine.IsZero())
	assert.Nil(t, got.DueAt)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_Create_RejectsNonPending(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	_, err := repo.Create(context.Background(), domain.LoanRecord{ID: uuid.New(), State: domain.LoanStateApproved})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRepo_Transition_FullLifecycle(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	item := testhelper.SeedItem(t, pool, 1)

	requested := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	l := testhelper.SeedLoan(t, pool, uuid.New(), item.ID, requested)

	approvedAt := requested.Add(time.Hour)
	due := approvedAt.Add(24 * time.Hour)
	got, err := repo.Transition(ctx, l.ID, domain.LoanStateApproved, domain.LoanEffects{At: approvedAt, DueAt: due})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStateApproved, got.State)

	_, err = repo.Transition(ctx, l.ID, domain.LoanStateCollected, domain.LoanEffects{At: approvedAt.Add(time.Minute)})
	require.NoError(t, err)

	returned := due.Add(49 * time.Hour)
	_, err = repo.Transition(ctx, l.ID, domain.LoanStateReturned, domain.LoanEffects{At: returned, Fine: decimal.NewFromInt(30)})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStateReturned, stored.State)
	require.NotNil(t, stored.ReturnedAt)
	assert.True(t, stored.ReturnedAt.Equal(returned))
	require.NotNil(t, stored.DueAt)
	assert.True(t, stored.DueAt.Equal(due))
	assert.True(t, stored.Fine.Equal(decimal.NewFromInt(30)), "fine = %s", stored.Fine)

	_, err = repo.Transition(ctx, l.ID, domain.LoanStateCollected, domain.LoanEffects{At: returned})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRepo_ListByBorrower_Keyset(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	item := testhelper.SeedItem(t, pool, 5)
	borrower := uuid.New()

	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := range 5 {
		ids = append(ids, testhelper.SeedLoan(t, pool, borrower, item.ID, base.Add(time.Duration(i)*time.Minute)).ID)
	}
	testhelper.SeedLoan(t, pool, uuid.New(), item.ID, base)

	var got []uuid.UUID
	page := domain.LoanPage{Limit: 2}
	for {
		loans, err := repo.ListByBorrower(ctx, borrower, page)
		require.NoError(t, err)
		for _, l := range loans {
			got = append(got, l.ID)
		}
		if len(loans) < page.Limit {
			break
		}
		c := domain.CursorOf(&loans[len(loans)-1])
		page.After = &c
	}
	assert.Equal(t, ids, got)
}

func TestRepo_ListOverdue(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	item := testhelper.SeedItem(t, pool, 2)

	requested := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	overdue := testhelper.SeedLoan(t, pool, uuid.New(), item.ID, requested)
	_, err := repo.Transition(ctx, overdue.ID, domain.LoanStateApproved,
		domain.LoanEffects{At: requested, DueAt: requested.Add(24 * time.Hour)})
	require.NoError(t, err)

	current := testhelper.SeedLoan(t, pool, uuid.New(), item.ID, requested)
	_, err = repo.Transition(ctx, current.ID, domain.LoanStateApproved,
		domain.LoanEffects{At: requested, DueAt: requested.Add(24 * 365 * 100 * time.Hour)})
	require.NoError(t, err)

	now := requested.Add(48 * time.Hour)
	var found []uuid.UUID
	page := domain.LoanPage{Limit: 1000}
	loans, err := repo.ListOverdue(ctx, now, page)
	require.NoError(t, err)
	for _, l := range loans {
		found = append(found, l.ID)
		assert.True(t, l.DueAt.Before(now))
	}
	assert.Contains(t, found, overdue.ID)
	assert.NotContains(t, found, current.ID)
}

func TestRepo_CountActiveByItem(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()
	item := testhelper.SeedItem(t, pool, 1)

	l := testhelper.SeedLoan(t, pool, uuid.New(), item.ID, time.Now())
	n, err := repo.CountActiveByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Transition(ctx, l.ID, domain.LoanStateRejected, domain.LoanEffects{At: time.Now()})
	require.NoError(t, err)
	n, err = repo.CountActiveByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRepo_GetByIDForUpdate_InTx(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	tm := postgres.NewTxManager(pool)
	item := testhelper.SeedItem(t, pool, 1)
	l := testhelper.SeedLoan(t, pool, uuid.New(), item.ID, time.Now())

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		got, err := repo.GetByIDForUpdate(ctx, l.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, l.ID, got.ID)
		return nil
	})
	require.NoError(t, err)
}
