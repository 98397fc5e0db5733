package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// DeleteItem removes an item from the catalog. Fails with domain.ErrConflict
// while any PENDING, APPROVED or COLLECTED loan references it. Finished loans
// stay in the loan history.
func (s *Service) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	if itemID == uuid.Nil {
		return domain.NewValidationError("item_id", "required")
	}

	var item domain.CatalogItem
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var getErr error
		item, getErr = s.items.GetByIDForUpdate(txCtx, itemID)
		if getErr != nil {
			return fmt.Errorf("get item: %w", getErr)
		}

		active, countErr := s.loans.CountActiveByItem(txCtx, itemID)
		if countErr != nil {
			return fmt.Errorf("count active loans: %w", countErr)
		}
		if active > 0 {
			return fmt.Errorf("catalog_item %s has %d active loans: %w", itemID, active, domain.ErrConflict)
		}

		if deleteErr := s.items.Delete(txCtx, itemID); deleteErr != nil {
			return fmt.Errorf("delete item: %w", deleteErr)
		}

		auditErr := s.audit.Log(txCtx, domain.AuditRecord{
			EntityType: domain.EntityTypeCatalogItem,
			EntityID:   itemID,
			Action:     domain.AuditActionDelete,
			Changes: map[string]any{
				"title":        map[string]any{"old": item.Title},
				"total_copies": map[string]any{"old": item.TotalCopies},
			},
			CreatedAt: s.now(),
		})
		if auditErr != nil {
			return fmt.Errorf("audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "catalog item deleted",
		slog.String("item_id", itemID.String()),
		slog.String("title", item.Title),
	)

	return nil
}
