package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/erp/orderdesk/internal/infrastructure/config"
	"github.com/erp/orderdesk/internal/infrastructure/kvstore"
	"github.com/erp/orderdesk/internal/infrastructure/logger"
	"github.com/erp/orderdesk/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var (
		driver   string
		logLevel string
		force    bool
	)

	flag.StringVar(&driver, "driver", "", "SQL driver, sqlite or postgres (default: storage.driver)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&force, "force", false, "Confirm destructive commands")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if driver == "" {
		driver = cfg.Storage.Driver
	}
	if driver != persistence.DriverSQLite && driver != persistence.DriverPostgres {
		log.Fatal("Migrations need a SQL driver", zap.String("driver", driver))
	}

	db, err := persistence.Open(driver, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	switch command {
	case "up":
		if err := kvstore.Migrate(db.DB); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Migrations applied", zap.String("driver", driver))

	case "status":
		exists := db.DB.Migrator().HasTable(&kvstore.Entry{})
		var count int64
		if exists {
			if err := db.DB.Model(&kvstore.Entry{}).Count(&count).Error; err != nil {
				log.Fatal("Failed to count entries", zap.Error(err))
			}
		}
		log.Info("Migration status",
			zap.String("table", kvstore.Entry{}.TableName()),
			zap.Bool("exists", exists),
			zap.Int64("entries", count),
		)

	case "drop":
		if !force {
			log.Fatal("Refusing to drop the order table without -force")
		}
		if err := db.DB.Migrator().DropTable(&kvstore.Entry{}); err != nil {
			log.Fatal("Drop failed", zap.Error(err))
		}
		log.Warn("Order table dropped", zap.String("table", kvstore.Entry{}.TableName()))

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: migrate [flags] <command>

Commands:
  up        Create or update the order table
  status    Show whether the order table exists and how many entries it holds
  drop      Drop the order table (requires -force)

Flags:
  -driver     SQL driver, sqlite or postgres (default: storage.driver)
  -log-level  Log level (debug, info, warn, error)
  -force      Confirm destructive commands`)
}
