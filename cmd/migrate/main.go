package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/repository/migrations"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/config"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/database"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
)

const usage = `usage: migrate [--config path] <command>

commands:
  up          apply all pending migrations
  down [n]    roll back n migrations (default 1)
  goto <v>    migrate up or down to version v
  status      print the current schema version
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "path to a .env or config file")
	pflag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		return fmt.Errorf("missing command")
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadWithPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name + "-migrate",
		Development: true,
		OutputPath:  "stderr",
	}); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	migrator, err := database.NewMigrator(migrations.FS, migrations.Dir, cfg.Database.MigrationURL())
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	switch args[0] {
	case "up":
		err = migrator.Up()
	case "down":
		steps := 1
		if len(args) > 1 {
			if steps, err = strconv.Atoi(args[1]); err != nil || steps < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
		}
		err = migrator.Down(steps)
	case "goto":
		if len(args) < 2 {
			return fmt.Errorf("goto needs a version")
		}
		v, perr := strconv.ParseUint(args[1], 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		err = migrator.Goto(uint(v))
	case "status":
	default:
		pflag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err != nil {
		logger.Error("migration failed", zap.String("command", args[0]), zap.Error(err))
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	fmt.Printf("version=%d dirty=%t\n", version, dirty)
	return nil
}
