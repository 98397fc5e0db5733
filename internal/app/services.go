package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/circulation-backend/internal/adapter/memory"
	"github.com/heartmarshall/circulation-backend/internal/adapter/postgres"
	pgaudit "github.com/heartmarshall/circulation-backend/internal/adapter/postgres/audit"
	pgcatalog "github.com/heartmarshall/circulation-backend/internal/adapter/postgres/catalog"
	pgloan "github.com/heartmarshall/circulation-backend/internal/adapter/postgres/loan"
	"github.com/heartmarshall/circulation-backend/internal/config"
	"github.com/heartmarshall/circulation-backend/internal/service/catalog"
	"github.com/heartmarshall/circulation-backend/internal/service/lending"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services holds the wired application services and the storage they share.
type Services struct {
	Catalog *catalog.Service
	Lending *lending.Service
	Storage Pinger

	close func()
}

// Close releases storage resources.
func (s *Services) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects the configured storage driver and wires the services on top.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	lendCfg := lending.Config{
		LoanPeriod:    cfg.Lending.LoanPeriod,
		DailyFineRate: cfg.Lending.DailyFineRate,
		PageSize:      cfg.Lending.OverduePageSize,
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := memory.New()
		return &Services{
			Catalog: catalog.NewService(logger, store.Catalog(), store.Loans(), store.Audit(), store),
			Lending: lending.NewService(logger, lendCfg, store.Catalog(), store.Loans(), store.Audit(), store),
			Storage: store,
		}, nil

	case config.StorageDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("database connected",
			slog.Int("max_conns", int(cfg.Database.MaxConns)),
		)

		svc := OpenPostgres(pool, lendCfg, logger)
		svc.close = pool.Close
		return svc, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// OpenPostgres wires the services over an existing pool. The caller owns the
// pool; Close on the result does not close it.
func OpenPostgres(pool *pgxpool.Pool, lendCfg lending.Config, logger *slog.Logger) *Services {
	items := pgcatalog.New(pool)
	loans := pgloan.New(pool)
	audit := pgaudit.New(pool)
	tx := postgres.NewTxManager(pool)

	return &Services{
		Catalog: catalog.NewService(logger, items, loans, audit, tx),
		Lending: lending.NewService(logger, lendCfg, items, loans, audit, tx),
		Storage: pool,
	}
}
