package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

const itemEntity = "catalog_item"

// CatalogRepo is the in-memory catalog item repository.
type CatalogRepo struct {
	s *Store
}

// GetByID returns a catalog item.
func (r *CatalogRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := r.s.exclusive(ctx, func(*tx) error {
		var err error
		item, err = r.s.item(id)
		return err
	})
	return item, err
}

// GetByIDForUpdate returns a catalog item. The store is already serialised,
// so no extra lock is taken.
func (r *CatalogRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.CatalogItem, error) {
	return r.GetByID(ctx, id)
}

// List returns items matching filter ordered by title, then id.
func (r *CatalogRepo) List(ctx context.Context, filter domain.CatalogFilter) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	err := r.s.exclusive(ctx, func(*tx) error {
		search := ""
		if filter.Search != nil {
			search = strings.ToLower(strings.TrimSpace(*filter.Search))
		}
		for _, item := range r.s.items {
			if search != "" &&
				!strings.Contains(strings.ToLower(item.Title), search) &&
				!strings.Contains(strings.ToLower(item.Author), search) {
				continue
			}
			if filter.Category != nil && (item.Category == nil || *item.Category != *filter.Category) {
				continue
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b domain.CatalogItem) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []domain.CatalogItem{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Stats summarises stock and circulation at now.
func (r *CatalogRepo) Stats(ctx context.Context, now time.Time) (domain.CatalogStats, error) {
	var st domain.CatalogStats
	err := r.s.exclusive(ctx, func(*tx) error {
		for _, item := range r.s.items {
			st.Titles++
			st.TotalCopies += item.TotalCopies
			st.AvailableCopies += item.AvailableCopies
		}
		for _, l := range r.s.loans {
			if !l.State.IsTerminal() {
				st.ActiveLoans++
			}
			if l.State.HoldsCopy() && l.IsOverdue(now) {
				st.OverdueLoans++
			}
		}
		return nil
	})
	return st, err
}

// Create inserts a new item.
func (r *CatalogRepo) Create(ctx context.Context, item domain.CatalogItem) (domain.CatalogItem, error) {
	err := r.s.exclusive(ctx, func(t *tx) error {
		if _, ok := r.s.items[item.ID]; ok {
			return fmt.Errorf("%s %s: %w", itemEntity, item.ID, domain.ErrAlreadyExists)
		}
		if item.ISBN != nil {
			for _, other := range r.s.items {
				if other.ISBN != nil && *other.ISBN == *item.ISBN {
					return fmt.Errorf("%s %s: isbn %s: %w", itemEntity, item.ID, *item.ISBN, domain.ErrAlreadyExists)
				}
			}
		}
		if item.TotalCopies < 0 {
			return fmt.Errorf("%s %s: total_copies: %w", itemEntity, item.ID, domain.ErrValidation)
		}
		if err := item.CheckInvariant(); err != nil {
			return fmt.Errorf("%w: %w", err, domain.ErrValidation)
		}
		r.s.putItem(t, item)
		return nil
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return item, nil
}

// Update writes the descriptive fields of item. Copy counters are untouched.
func (r *CatalogRepo) Update(ctx context.Context, item domain.CatalogItem) (domain.CatalogItem, error) {
	var updated domain.CatalogItem
	err := r.s.exclusive(ctx, func(t *tx) error {
		current, err := r.s.item(item.ID)
		if err != nil {
			return err
		}
		if item.ISBN != nil {
			for id, other := range r.s.items {
				if id != item.ID && other.ISBN != nil && *other.ISBN == *item.ISBN {
					return fmt.Errorf("%s %s: isbn %s: %w", itemEntity, item.ID, *item.ISBN, domain.ErrAlreadyExists)
				}
			}
		}
		updated = current
		updated.Title = item.Title
		updated.Author = item.Author
		updated.ISBN = item.ISBN
		updated.Category = item.Category
		updated.Description = item.Description
		updated.PublishedYear = item.PublishedYear
		updated.UpdatedAt = item.UpdatedAt
		r.s.putItem(t, updated)
		return nil
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return updated, nil
}

// Delete removes an item.
func (r *CatalogRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.exclusive(ctx, func(t *tx) error {
		if _, err := r.s.item(id); err != nil {
			return err
		}
		r.s.deleteItem(t, id)
		return nil
	})
}

// Reserve takes one copy out of the pool.
func (r *CatalogRepo) Reserve(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.mutate(ctx, id, at, (*domain.CatalogItem).Reserve)
}

// Release puts one copy back into the pool.
func (r *CatalogRepo) Release(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.mutate(ctx, id, at, (*domain.CatalogItem).Release)
}

// AdjustStock adds delta copies (negative removes).
func (r *CatalogRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int, at time.Time) (domain.CatalogItem, error) {
	var out domain.CatalogItem
	err := r.mutate(ctx, id, at, func(item *domain.CatalogItem) error {
		if err := item.AdjustStock(delta); err != nil {
			return err
		}
		out = *item
		return nil
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}
	return out, nil
}

func (r *CatalogRepo) mutate(ctx context.Context, id uuid.UUID, at time.Time, fn func(*domain.CatalogItem) error) error {
	return r.s.exclusive(ctx, func(t *tx) error {
		item, err := r.s.item(id)
		if err != nil {
			return err
		}
		if err := fn(&item); err != nil {
			return err
		}
		item.UpdatedAt = at.UTC()
		r.s.putItem(t, item)
		return nil
	})
}

func (s *Store) item(id uuid.UUID) (domain.CatalogItem, error) {
	item, ok := s.items[id]
	if !ok {
		return domain.CatalogItem{}, fmt.Errorf("%s %s: %w", itemEntity, id, domain.ErrNotFound)
	}
	return item, nil
}
