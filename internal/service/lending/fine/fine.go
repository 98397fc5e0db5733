// Package fine computes overdue penalties for late returns.
// Everything here is pure: the same inputs always give the same amount,
// so a retried return computes the same fine.
package fine

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Scale is the number of decimal places amounts are stored with.
const Scale = 2

// DefaultDailyRate is charged per started day of delay.
var DefaultDailyRate = decimal.NewFromInt(10)

// ValidRate reports whether rate is positive and has at most Scale decimal
// places, so every fine it produces is stored exactly.
func ValidRate(rate decimal.Decimal) bool {
	return rate.IsPositive() && rate.Round(Scale).Equal(rate)
}

// DaysLate returns the number of started 24h periods between dueAt and
// returnedAt. A return one hour late counts as one day. On-time returns give 0.
func DaysLate(dueAt, returnedAt time.Time) int64 {
	if !returnedAt.After(dueAt) {
		return 0
	}
	late := returnedAt.Sub(dueAt)
	days := int64(late / day)
	if late%day != 0 {
		days++
	}
	return days
}

// Compute returns DaysLate(dueAt, returnedAt) * dailyRate.
func Compute(dueAt, returnedAt time.Time, dailyRate decimal.Decimal) decimal.Decimal {
	days := DaysLate(dueAt, returnedAt)
	if days == 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(days))
}
