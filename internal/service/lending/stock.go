package lending

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/heartmarshall/circulation-backend/internal/domain"
)

// AdjustStock adds delta copies to an item (negative removes). Copies on loan
// cannot be removed: asking for more than are available fails with
// domain.ErrOutOfStock and changes nothing.
func (s *Service) AdjustStock(ctx context.Context, itemID uuid.UUID, delta int) (domain.CatalogItem, error) {
	ctx, span := startSpan(ctx, "AdjustStock",
		attribute.String("item.id", itemID.String()),
		attribute.Int("delta", delta),
	)

	var item domain.CatalogItem
	var err error
	if delta == 0 {
		err = domain.NewValidationError("delta", "must not be zero")
	} else {
		err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			now := s.Now()

			var adjErr error
			item, adjErr = s.catalog.AdjustStock(txCtx, itemID, delta, now)
			if adjErr != nil {
				return fmt.Errorf("adjust stock: %w", adjErr)
			}

			auditErr := s.audit.Log(txCtx, domain.AuditRecord{
				EntityType: domain.EntityTypeCatalogItem,
				EntityID:   itemID,
				Action:     domain.AuditActionUpdate,
				Changes: map[string]any{
					"delta":            delta,
					"total_copies":     map[string]any{"new": item.TotalCopies},
					"available_copies": map[string]any{"new": item.AvailableCopies},
				},
				CreatedAt: now,
			})
			if auditErr != nil {
				return fmt.Errorf("audit log: %w", auditErr)
			}
			return nil
		})
	}
	endSpan(span, err)

	if err != nil {
		s.logFailure(ctx, "AdjustStock", err, slog.String("item_id", itemID.String()), slog.Int("delta", delta))
		return domain.CatalogItem{}, err
	}

	s.log.InfoContext(ctx, "stock adjusted",
		slog.String("item_id", itemID.String()),
		slog.Int("delta", delta),
		slog.Int("total_copies", item.TotalCopies),
		slog.Int("available_copies", item.AvailableCopies),
	)
	return item, nil
}
