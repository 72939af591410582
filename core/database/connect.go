package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/mailbot/core/logger"
	"github.com/m3rciful/mailbot/core/netutil"
)

const retryEvery = 2 * time.Second

type dialFunc func(ctx context.Context) (*sqlx.DB, error)

// Connect opens a pool to the configured Postgres. While the server is not
// reachable yet (it often starts alongside the bot) the dial is retried until
// cfg.ConnectTimeout elapses.
func Connect(cfg Config) (*sqlx.DB, error) {
	wait := cfg.ConnectTimeout
	if wait <= 0 {
		wait = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return connect(ctx, cfg, func(ctx context.Context) (*sqlx.DB, error) {
		return sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	}, retryEvery)
}

func connect(ctx context.Context, cfg Config, dial dialFunc, every time.Duration) (*sqlx.DB, error) {
	start := time.Now()
	target := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	for attempt := 1; ; attempt++ {
		db, err := dial(ctx)
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxConnections)
			db.SetMaxIdleConns(cfg.MaxConnections)
			logger.Info(ctx, "db", "db.connect", append(target,
				slog.String("status", "ok"),
				slog.Int("attempts", attempt),
				slog.Int("pool_open", cfg.MaxConnections),
				slog.Duration("duration", logger.Took(start)),
			)...)
			return db, nil
		}

		if !netutil.ShouldRetry(err) {
			logger.Error(ctx, "db", "db.connect", append(target,
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)...)
			return nil, fmt.Errorf("db connect: %w", err)
		}
		logger.Warn(ctx, "db", "db.connect", append(target,
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.String("err_kind", netutil.Classify(err)),
		)...)

		timer := time.NewTimer(every)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("db connect: gave up after %d attempts: %w", attempt, err)
		case <-timer.C:
		}
	}
}
