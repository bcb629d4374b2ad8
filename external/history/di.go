package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hfcRed/Agent-8s-sub000/internal/config"
	"github.com/hfcRed/Agent-8s-sub000/internal/history"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

// RegisterDI wires the match archive. With no DATABASE_URL the bot runs with
// a no-op archive; live lobby state is in-memory either way.
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (history.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.DatabaseURL == "" {
			slog.Info("DATABASE_URL not set; match archiving disabled")
			return NewNoopRepository(), nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		return NewPostgresRepository(p), nil
	})
}
