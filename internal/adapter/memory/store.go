// Package memory is an in-process storage backend. One transaction runs at a
// time; each keeps an undo journal that is replayed when it fails.
package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// Store holds catalog items, loan records and the audit log.
// Every access, read or write, holds the single writer slot, so callers
// never observe another transaction's uncommitted changes.
type Store struct {
	writer *semaphore.Weighted

	items map[uuid.UUID]domain.CatalogItem
	loans map[uuid.UUID]domain.LoanRecord
	audit []domain.AuditRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{
		writer: semaphore.NewWeighted(1),
		items:  make(map[uuid.UUID]domain.CatalogItem),
		loans:  make(map[uuid.UUID]domain.LoanRecord),
	}
}

// Catalog returns the catalog item repository view.
func (s *Store) Catalog() *CatalogRepo { return &CatalogRepo{s: s} }

// Loans returns the loan record repository view.
func (s *Store) Loans() *LoanRepo { return &LoanRepo{s: s} }

// Ping reports whether the store can serve requests. It always can unless
// ctx is done.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Audit returns the audit log repository view.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

type txCtxKey struct{}

type tx struct {
	undo []func()
}

func (t *tx) record(fn func()) { t.undo = append(t.undo, fn) }

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// RunInTx executes fn as one transaction. A nested call joins the outer
// transaction. If fn returns an error or panics, every change it made is
// undone.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txCtxKey{}).(*tx); ok {
		return fn(ctx)
	}

	if err := s.writer.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer s.writer.Release(1)

	t := &tx{}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, t)); err != nil {
		t.rollback()
		return err
	}
	return nil
}

// exclusive runs fn holding the writer slot. Outside a transaction fn forms
// its own single-statement transaction.
func (s *Store) exclusive(ctx context.Context, fn func(t *tx) error) error {
	if t, ok := ctx.Value(txCtxKey{}).(*tx); ok {
		return fn(t)
	}

	if err := s.writer.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.writer.Release(1)

	t := &tx{}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) putItem(t *tx, item domain.CatalogItem) {
	prev, existed := s.items[item.ID]
	t.record(func() {
		if existed {
			s.items[item.ID] = prev
		} else {
			delete(s.items, item.ID)
		}
	})
	s.items[item.ID] = item
}

func (s *Store) deleteItem(t *tx, id uuid.UUID) {
	prev := s.items[id]
	t.record(func() { s.items[id] = prev })
	delete(s.items, id)
}

func (s *Store) putLoan(t *tx, l domain.LoanRecord) {
	prev, existed := s.loans[l.ID]
	t.record(func() {
		if existed {
			s.loans[l.ID] = prev
		} else {
			delete(s.loans, l.ID)
		}
	})
	s.loans[l.ID] = l
}

func (s *Store) appendAudit(t *tx, rec domain.AuditRecord) {
	n := len(s.audit)
	t.record(func() { s.audit = s.audit[:n] })
	s.audit = append(s.audit, rec)
}
