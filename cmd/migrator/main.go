package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/linemk/proshop/internal/app"
	"github.com/linemk/proshop/internal/config"
)

const migrationTableName = "migrations"

// buildMigrateDSN добавляет к DSN таблицу версий golang-migrate
func buildMigrateDSN(dbCfg config.DatabaseConfig, migrationTable string) string {
	return fmt.Sprintf("%s&x-migrations-table=%s", app.DSN(dbCfg), migrationTable)
}

func main() {
	var (
		migrationsPathFlag string
		down               bool
	)
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back all migrations")
	// флаг -config разбирается в config.MustLoad
	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	// Создаем объект мигратора
	m, err := migrate.New(
		"file://"+migrationsPath,
		buildMigrateDSN(cfg.Database, migrationTableName),
	)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("No migrations to apply")
		} else {
			log.Fatalf("migration failed: %v", err)
		}
	} else {
		log.Println("Migrations applied successfully")
	}

	db, err := sql.Open("postgres", app.DSN(cfg.Database))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := printTables(db); err != nil {
		log.Fatalf("failed to list tables: %v", err)
	}
}

func printTables(db *sql.DB) error {
	rows, err := db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	fmt.Println("Current tables in the database:")
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		fmt.Println(" -", tableName)
	}
	return rows.Err()
}
