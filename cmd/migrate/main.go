// Package main manages the games, game_actions and game_results schema.
//
// Usage:
//
//	migrate [-config path] [-migrations dir] up|down|status [steps]
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tiledungeon/internal/config"
	"github.com/cory-johannsen/tiledungeon/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	sourceDir := flag.String("migrations", "migrations", "directory holding the migration files")
	flag.Parse()

	cmd, steps, err := parseArgs(flag.Args())
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	m, err := migrate.New("file://"+*sourceDir, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("creating migrator", zap.Error(err))
	}
	defer m.Close()

	switch cmd {
	case "up":
		err = run(m.Up, m.Steps, steps)
	case "down":
		err = run(m.Down, m.Steps, -steps)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already current")
	} else if err != nil {
		logger.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal("reading schema version", zap.Error(err))
	}
	logger.Info("schema version",
		zap.String("command", cmd),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
}

// run applies all migrations with all, or n of them with steps when n != 0.
func run(all func() error, steps func(int) error, n int) error {
	if n != 0 {
		return steps(n)
	}
	return all()
}

func parseArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "up", 0, nil
	}
	cmd := args[0]
	switch cmd {
	case "up", "down", "status":
	default:
		return "", 0, fmt.Errorf("unknown command %q: want up, down or status", cmd)
	}
	if len(args) < 2 {
		return cmd, 0, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("steps must be a non-negative integer, got %q", args[1])
	}
	return cmd, n, nil
}
