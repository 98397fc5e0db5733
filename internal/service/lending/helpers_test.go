package lending

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/adapter/memory"
	"github.com/heartmarshall/circulation-backend/internal/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// testClock is a settable clock safe for concurrent use.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock { return &testClock{now: at} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

// syncBuffer lets concurrent handlers write log output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	svc   *Service
	store *memory.Store
	clock *testClock
	logs  *syncBuffer
}

type fixtureOpts struct {
	catalog catalogRepo
	audit   auditRepo
	cfg     *Config
}

func newFixture(t *testing.T, opts ...func(*fixtureOpts, *memory.Store)) *fixture {
	t.Helper()

	store := memory.New()
	o := fixtureOpts{catalog: store.Catalog(), audit: store.Audit()}
	for _, fn := range opts {
		fn(&o, store)
	}
	cfg := DefaultConfig()
	cfg.PageSize = 2
	if o.cfg != nil {
		cfg = *o.cfg
	}

	clock := newTestClock(t0)
	logs := &syncBuffer{}
	log := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	svc := NewService(log, cfg, o.catalog, store.Loans(), o.audit, store, WithClock(clock.Now))
	return &fixture{svc: svc, store: store, clock: clock, logs: logs}
}

func (f *fixture) seedItem(t *testing.T, copies int) domain.CatalogItem {
	t.Helper()
	item, err := f.store.Catalog().Create(context.Background(), domain.CatalogItem{
		ID:              uuid.New(),
		Title:           "Item " + uuid.NewString()[:8],
		Author:          "Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       t0,
		UpdatedAt:       t0,
	})
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func (f *fixture) request(t *testing.T, itemID uuid.UUID) domain.LoanRecord {
	t.Helper()
	l, err := f.svc.RequestLoan(context.Background(), uuid.New(), itemID)
	if err != nil {
		t.Fatalf("RequestLoan: %v", err)
	}
	return l
}

func (f *fixture) approve(t *testing.T, loanID uuid.UUID) domain.LoanRecord {
	t.Helper()
	l, err := f.svc.Approve(context.Background(), loanID, nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return l
}

func (f *fixture) available(t *testing.T, itemID uuid.UUID) int {
	t.Helper()
	item, err := f.svc.GetCatalogItem(context.Background(), itemID)
	if err != nil {
		t.Fatalf("GetCatalogItem: %v", err)
	}
	if err := item.CheckInvariant(); err != nil {
		t.Fatalf("invariant: %v", err)
	}
	return item.AvailableCopies
}

func ptrTime(t time.Time) *time.Time { return &t }

// catalogRepoMock wraps a real repo and lets a test override single methods.
type catalogRepoMock struct {
	catalogRepo
	ReleaseFunc func(ctx context.Context, id uuid.UUID, at time.Time) error
}

func (m *catalogRepoMock) Release(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, id, at)
	}
	return m.catalogRepo.Release(ctx, id, at)
}

// auditRepoMock wraps a real repo and lets a test override Log.
type auditRepoMock struct {
	auditRepo
	LogFunc func(ctx context.Context, record domain.AuditRecord) error
}

func (m *auditRepoMock) Log(ctx context.Context, record domain.AuditRecord) error {
	if m.LogFunc != nil {
		return m.LogFunc(ctx, record)
	}
	return m.auditRepo.Log(ctx, record)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
