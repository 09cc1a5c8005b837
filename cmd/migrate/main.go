package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate [flags] <command>

Commands:
  up        apply all pending migrations
  down      roll back all migrations
  steps     apply -n migrations (negative rolls back)
  version   print the current version
  force     set the version to -n without running migrations

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	n := flag.Int("n", 0, "step count for steps, target version for force")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.Driver != config.DriverMySQL {
		log.Fatalf("migrations need the mysql driver, configured %q", cfg.Database.Driver)
	}

	zlog, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := storage.OpenMySQL(ctx, storage.MySQLConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
	})
	if err != nil {
		zlog.Fatal("failed to connect mysql", zap.Error(err))
	}
	defer db.Close()

	migrator, err := storage.NewMigrator(db, zlog)
	if err != nil {
		zlog.Fatal("failed to create migrator", zap.Error(err))
	}
	defer migrator.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Down()
	case "steps":
		if *n == 0 {
			zlog.Fatal("steps needs a non-zero -n")
		}
		err = migrator.Steps(*n)
	case "force":
		err = migrator.Force(*n)
	case "version":
		version, dirty, verr := migrator.Version()
		if verr == nil {
			fmt.Printf("version %d (dirty: %v)\n", version, dirty)
		}
		err = verr
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}
}
