// Package overdue periodically reports loans that are past their due date.
package overdue

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heartmarshall/circulation-backend/internal/domain"
	"github.com/heartmarshall/circulation-backend/internal/service/lending/fine"
)

type loanLister interface {
	OverdueLoans(ctx context.Context, now time.Time) iter.Seq2[domain.LoanRecord, error]
	Now() time.Time
	DailyFineRate() decimal.Decimal
}

// Report summarises one scan.
type Report struct {
	ScannedAt    time.Time
	Overdue      int
	TotalAccrued decimal.Decimal
}

// Scanner walks the overdue listing and logs every loan with the fine it has
// accrued so far. It never changes loan state.
type Scanner struct {
	loans    loanLister
	interval time.Duration
	log      *slog.Logger
}

// NewScanner creates a Scanner that runs every interval.
func NewScanner(log *slog.Logger, loans loanLister, interval time.Duration) *Scanner {
	return &Scanner{
		loans:    loans,
		interval: interval,
		log:      log.With("worker", "overdue_scanner"),
	}
}

// Scan performs one pass.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	now := s.loans.Now()
	rate := s.loans.DailyFineRate()
	report := Report{ScannedAt: now, TotalAccrued: decimal.Zero}

	for loan, err := range s.loans.OverdueLoans(ctx, now) {
		if err != nil {
			return report, fmt.Errorf("overdue scan: %w", err)
		}
		if loan.DueAt == nil {
			continue
		}

		accrued := fine.Compute(*loan.DueAt, now, rate)
		report.Overdue++
		report.TotalAccrued = report.TotalAccrued.Add(accrued)

		s.log.WarnContext(ctx, "loan overdue",
			slog.String("loan_id", loan.ID.String()),
			slog.String("borrower_id", loan.BorrowerID.String()),
			slog.String("item_id", loan.ItemID.String()),
			slog.String("state", loan.State.String()),
			slog.Time("due_at", *loan.DueAt),
			slog.Int64("days_late", fine.DaysLate(*loan.DueAt, now)),
			slog.String("accrued_fine", accrued.String()),
		)
	}

	s.log.InfoContext(ctx, "overdue scan finished",
		slog.Int("overdue", report.Overdue),
		slog.String("total_accrued", report.TotalAccrued.String()),
		slog.Time("scanned_at", now),
	)
	return report, nil
}

// Run scans immediately and then every interval until ctx is cancelled.
// A failed scan is logged and retried on the next tick.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.log.ErrorContext(ctx, "overdue scan failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "overdue scanner stopped")
			return nil
		case <-ticker.C:
		}
	}
}
