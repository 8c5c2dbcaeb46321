package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"salesflow/config"
	"salesflow/internal/repository"
	"salesflow/pkg/database"
	"salesflow/pkg/logger"

	"gorm.io/gorm"
)

const usage = `
Salesflow - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Create or update all tables and constraints
  status      Show database connection status and row counts
  seed-dev    Seed a store, staff, a reseller and two open orders

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev
`

var statusTables = []string{
	"users",
	"stores",
	"stocks",
	"sale_orders",
	"payments",
	"fulfillments",
	"outbox_events",
}

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	command := flag.Arg(0)

	cfg := config.LoadConfig()
	l := logger.New(cfg.LogMode)
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close(db)

	ctx := context.Background()
	switch command {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(ctx, db)
	case "seed-dev":
		runSeedDevelopment(ctx, db, l)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("Running migrations...")
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func showStatus(ctx context.Context, db *gorm.DB) {
	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range statusTables {
		if !database.TableExists(db, table) {
			log.Printf("Table %-16s does not exist", table)
			continue
		}
		count, err := database.TableCount(ctx, db, table)
		if err != nil {
			log.Printf("Error counting table %s: %v", table, err)
			continue
		}
		log.Printf("Table %-16s exists (%d rows)", table, count)
	}
}

func runSeedDevelopment(ctx context.Context, db *gorm.DB, l *logger.Logger) {
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	result, err := database.SeedDevelopment(ctx, repository.NewStore(db), nil, l)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Seed Summary:")
	log.Printf("   - Store: %s (%s)", result.Store.Name, result.Store.ID)
	log.Printf("   - Manager: %s", result.Manager.Email)
	log.Printf("   - Biller: %s", result.Biller.Email)
	log.Printf("   - Reseller: %s", result.Reseller.Email)
	log.Printf("   - Reseller order: %s", result.ResellerOrder.ID)
	log.Printf("   - Consumer order: %s", result.ConsumerOrder.ID)
}
