package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/heartmarshall/circulation-backend/internal/service/lending/fine"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for storage driver %q", c.Storage.Driver)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q (got %q)",
			StorageDriverPostgres, StorageDriverMemory, c.Storage.Driver)
	}

	if err := c.Lending.validate(); err != nil {
		return fmt.Errorf("lending: %w", err)
	}

	return nil
}

func (l *LendingConfig) validate() error {
	if l.LoanPeriod <= 0 {
		return fmt.Errorf("loan_period must be > 0 (got %s)", l.LoanPeriod)
	}
	if l.OverdueScanInterval <= 0 {
		return fmt.Errorf("overdue_scan_interval must be > 0 (got %s)", l.OverdueScanInterval)
	}
	if l.OverduePageSize <= 0 {
		return fmt.Errorf("overdue_page_size must be > 0 (got %d)", l.OverduePageSize)
	}

	rate, err := ParseRate(l.DailyFineRateRaw)
	if err != nil {
		return fmt.Errorf("daily_fine_rate: %w", err)
	}
	l.DailyFineRate = rate

	return nil
}

// ParseRate parses a positive decimal amount such as "10" or "2.50".
// At most fine.Scale decimal places are accepted.
func ParseRate(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("must be > 0 (got %s)", d)
	}
	if !fine.ValidRate(d) {
		return decimal.Zero, fmt.Errorf("at most %d decimal places allowed (got %s)", fine.Scale, d)
	}
	return d, nil
}
