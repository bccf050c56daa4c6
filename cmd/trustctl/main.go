// trustctl runs trust maintenance against the configured database: backfills,
// single-user recalculation, tier inspection and vouch request expiry.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/feyza/backend/internal/app"
	"github.com/feyza/backend/internal/config"
	"github.com/feyza/backend/internal/db"
	"github.com/feyza/backend/internal/observability"
)

func main() {
	cfg := config.Load()
	logger := observability.ForComponent(observability.NewLogger(cfg.Env, cfg.LogLevel), "trustctl")

	open := func(ctx context.Context) (*env, error) {
		rt, err := app.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &env{
			services: rt.Services,
			settings: rt.Settings,
			migrate:  func(ctx context.Context) error { return db.Migrate(ctx, rt.Pool, logger) },
			close:    rt.Close,
		}, nil
	}

	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
