// Command overdue-report logs every overdue loan with the fine accrued so far
// and exits. It is intended to be invoked by an external cron job when the
// in-process scanner is not wanted.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/circulation-backend/internal/app"
	"github.com/heartmarshall/circulation-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := app.RunOverdueReport(ctx, cfg, logger)
	if err != nil {
		os.Exit(1)
	}

	logger.Info("overdue report completed",
		slog.Int("overdue", report.Overdue),
		slog.String("total_accrued", report.TotalAccrued.String()),
	)
}
