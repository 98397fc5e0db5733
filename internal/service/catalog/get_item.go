package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// GetItem returns one catalog item.
func (s *Service) GetItem(ctx context.Context, itemID uuid.UUID) (domain.CatalogItem, error) {
	if itemID == uuid.Nil {
		return domain.CatalogItem{}, domain.NewValidationError("item_id", "required")
	}
	return s.items.GetByID(ctx, itemID)
}

// ListItems returns catalog items matching input, ordered by title.
func (s *Service) ListItems(ctx context.Context, input ListItemsInput) ([]domain.CatalogItem, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	return s.items.List(ctx, domain.CatalogFilter{
		Search:   trimOrNil(input.Search),
		Category: trimOrNil(input.Category),
		Limit:    limit,
		Offset:   input.Offset,
	})
}

// Stats summarises stock and circulation right now.
func (s *Service) Stats(ctx context.Context) (domain.CatalogStats, error) {
	return s.items.Stats(ctx, s.now())
}
