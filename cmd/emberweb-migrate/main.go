// Command emberweb-migrate applies or rolls back the schema backing the
// supplemented Postgres AuthStore (SPEC_FULL.md §10), under migrations/postgres.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/aras-services/emberweb/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: emberweb-migrate [up|down|version] [-config path]")
	}
	command := os.Args[1]

	configPath := ""
	if len(os.Args) > 3 && os.Args[2] == "-config" {
		configPath = os.Args[3]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Auth.PostgresDSN == "" {
		log.Fatal("auth.postgres_dsn is not set; nothing to migrate")
	}

	db, err := sql.Open("postgres", cfg.Auth.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("failed to create postgres driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations/postgres", "postgres", driver)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("failed to run migrations up: %v", err)
		}
		fmt.Println("migrations completed successfully")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("failed to run migrations down: %v", err)
		}
		fmt.Println("migrations rolled back successfully")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("failed to get migration version: %v", err)
		}
		fmt.Printf("current version: %d, dirty: %v\n", version, dirty)
	default:
		log.Fatal("unknown command; use: up, down, or version")
	}
}
