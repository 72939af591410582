package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/mailbot/core/logger"
)

const component = "db.migrate"

// RunMigrations applies all up migrations from cfg.MigrationsDir, resolved
// against the working directory when relative. Callers connect first, so the
// server is known to be reachable.
func RunMigrations(cfg Config) error {
	ctx := context.Background()
	dir := cfg.MigrationsDir
	if dir == "" {
		dir = "migrations"
	}
	path, err := filepath.Abs(dir)
	if err != nil {
		logger.Error(ctx, component, "db.migrate", slog.String("status", "fail"), slog.String("err", err.Error()))
		return fmt.Errorf("resolve migrations dir: %w", err)
	}

	files := listMigrationFiles(path)
	logger.Debug(ctx, component, "db.migrate.resolve",
		append([]slog.Attr{slog.String("path", path), slog.Int("files_total", len(files))}, fileAttrs(files)...)...)

	m, err := migrate.New("file://"+path, cfg.URL())
	if err != nil {
		logger.Error(ctx, component, "db.migrate", slog.String("status", "fail"), slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.RoundMS(time.Since(start))

	toVer := fromVer
	switch {
	case upErr == nil:
		toVer, _, _ = m.Version()
	case errors.Is(upErr, migrate.ErrNoChange):
	default:
		logger.Error(ctx, component, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		logger.Debug(ctx, component, "db.migrate.apply", fileAttrs(applied)...)
	}
	logger.Info(ctx, component, "db.migrate",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func fileAttrs(files []string) []slog.Attr {
	preview, truncated := logger.SummarizeStrings(files, 6)
	var attrs []slog.Attr
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) == 0 {
		return 0
	}
	v, _ := strconv.ParseUint(parts[0], 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		v := parseVersion(f)
		if v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
