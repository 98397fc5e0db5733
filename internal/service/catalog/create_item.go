package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// CreateItem adds a title with TotalCopies copies, all available.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput) (domain.CatalogItem, error) {
	if err := input.Validate(); err != nil {
		return domain.CatalogItem{}, err
	}

	now := s.now()
	item := domain.CatalogItem{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		ISBN:            trimOrNil(input.ISBN),
		Category:        trimOrNil(input.Category),
		Description:     trimOrNil(input.Description),
		PublishedYear:   input.PublishedYear,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var created domain.CatalogItem
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var createErr error
		created, createErr = s.items.Create(txCtx, item)
		if createErr != nil {
			return fmt.Errorf("create item: %w", createErr)
		}

		auditErr := s.audit.Log(txCtx, domain.AuditRecord{
			EntityType: domain.EntityTypeCatalogItem,
			EntityID:   created.ID,
			Action:     domain.AuditActionCreate,
			Changes: map[string]any{
				"title":        map[string]any{"new": created.Title},
				"total_copies": map[string]any{"new": created.TotalCopies},
			},
			CreatedAt: now,
		})
		if auditErr != nil {
			return fmt.Errorf("audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}

	s.log.InfoContext(ctx, "catalog item created",
		slog.String("item_id", created.ID.String()),
		slog.String("title", created.Title),
		slog.Int("total_copies", created.TotalCopies),
	)

	return created, nil
}
