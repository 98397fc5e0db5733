package app

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/circulation-backend/internal/app/overdue"
	"github.com/heartmarshall/circulation-backend/internal/config"
)

// RunOverdueReport performs a single overdue scan and returns its report.
func RunOverdueReport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (overdue.Report, error) {
	svc, err := Open(ctx, cfg, logger)
	if err != nil {
		return overdue.Report{}, err
	}
	defer svc.Close()

	scanner := overdue.NewScanner(logger, svc.Lending, cfg.Lending.OverdueScanInterval)
	report, err := scanner.Scan(ctx)
	if err != nil {
		logger.Error("overdue report failed", slog.String("error", err.Error()))
		return report, err
	}
	return report, nil
}
