package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"storefront/internal/config"
	"storefront/internal/db"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	flag.Parse()

	cfg := config.LoadConfig()

	open := func() (*sql.DB, error) { return db.NewDatabase(cfg) }
	if err := run(*mode, open, db.Migrate); err != nil {
		log.Fatal(err)
	}
	log.Printf("migrations %s complete", *mode)
}

func run(mode string, open func() (*sql.DB, error), apply func(*sql.DB, string) error) error {
	if mode != "up" && mode != "down" {
		return fmt.Errorf("unknown mode: %s (use 'up' or 'down')", mode)
	}

	database, err := open()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := apply(database, mode); err != nil {
		return fmt.Errorf("migration %s failed: %w", mode, err)
	}
	return nil
}
