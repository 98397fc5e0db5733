package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// UpdateItem changes the descriptive fields of an item.
func (s *Service) UpdateItem(ctx context.Context, input UpdateItemInput) (domain.CatalogItem, error) {
	if err := input.Validate(); err != nil {
		return domain.CatalogItem{}, err
	}

	var updated domain.CatalogItem
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		// Fetch old state inside transaction for accurate audit diff.
		old, getErr := s.items.GetByIDForUpdate(txCtx, input.ItemID)
		if getErr != nil {
			return fmt.Errorf("get item: %w", getErr)
		}

		next := old
		if input.Title != nil {
			next.Title = strings.TrimSpace(*input.Title)
		}
		if input.Author != nil {
			next.Author = strings.TrimSpace(*input.Author)
		}
		if input.ISBN != nil {
			next.ISBN = trimOrNil(input.ISBN)
		}
		if input.Category != nil {
			next.Category = trimOrNil(input.Category)
		}
		if input.Description != nil {
			next.Description = trimOrNil(input.Description)
		}
		if input.PublishedYear != nil {
			next.PublishedYear = input.PublishedYear
		}
		next.UpdatedAt = s.now()

		var updateErr error
		updated, updateErr = s.items.Update(txCtx, next)
		if updateErr != nil {
			return fmt.Errorf("update item: %w", updateErr)
		}

		// Skip audit if nothing actually changed.
		changes := buildItemChanges(old, updated)
		if len(changes) > 0 {
			if auditErr := s.audit.Log(txCtx, domain.AuditRecord{
				EntityType: domain.EntityTypeCatalogItem,
				EntityID:   input.ItemID,
				Action:     domain.AuditActionUpdate,
				Changes:    changes,
				CreatedAt:  next.UpdatedAt,
			}); auditErr != nil {
				return fmt.Errorf("audit log: %w", auditErr)
			}
		}

		return nil
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}

	s.log.InfoContext(ctx, "catalog item updated",
		slog.String("item_id", input.ItemID.String()),
	)

	return updated, nil
}

// buildItemChanges returns only changed fields for audit.
func buildItemChanges(old, updated domain.CatalogItem) map[string]any {
	changes := make(map[string]any)
	if old.Title != updated.Title {
		changes["title"] = map[string]any{"old": old.Title, "new": updated.Title}
	}
	if old.Author != updated.Author {
		changes["author"] = map[string]any{"old": old.Author, "new": updated.Author}
	}
	for field, pair := range map[string][2]*string{
		"isbn":        {old.ISBN, updated.ISBN},
		"category":    {old.Category, updated.Category},
		"description": {old.Description, updated.Description},
	} {
		if deref(pair[0]) != deref(pair[1]) {
			changes[field] = map[string]any{"old": pair[0], "new": pair[1]}
		}
	}
	if (old.PublishedYear == nil) != (updated.PublishedYear == nil) ||
		(old.PublishedYear != nil && *old.PublishedYear != *updated.PublishedYear) {
		changes["published_year"] = map[string]any{"old": old.PublishedYear, "new": updated.PublishedYear}
	}
	return changes
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
