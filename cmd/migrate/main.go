package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chrissnell/aeroaqua/internal/storage/sqlite"
	"github.com/chrissnell/aeroaqua/pkg/config"
	"github.com/chrissnell/aeroaqua/pkg/migrate"
)

func main() {
	var (
		dbPath        = flag.String("db", "", "Path to the SQLite database")
		schema        = flag.String("schema", "config", "Schema to migrate: config, results")
		command       = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		helpFlag      = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -db flag is required\n")
		showHelp()
		os.Exit(1)
	}

	fsys, table, err := schemaMigrations(*schema)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(fsys, table, "sqlite"))

	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down":
		err = migrator.MigrateDown(target(*command, *targetVersion))
	case "to":
		err = migrator.MigrateTo(target(*command, *targetVersion))
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
		if err == nil {
			return
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func schemaMigrations(name string) (fs.FS, string, error) {
	switch name {
	case "config":
		return config.Migrations(), config.MigrationTable, nil
	case "results":
		return sqlite.Migrations(), sqlite.MigrationTable, nil
	default:
		return nil, "", fmt.Errorf("unknown schema %q (want config or results)", name)
	}
}

func target(command, v string) int {
	if v == "" {
		fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", command)
		os.Exit(1)
	}
	t, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid target version: %v", err)
	}
	return t
}

func showStatus(migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations()
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))

	if len(pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate -db <path> [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -db string         SQLite database path (required)")
	fmt.Println("  -schema string     config or results (default: config)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -db config.db -command up")
	fmt.Println("  migrate -db results.db -schema results -command status")
	fmt.Println("  migrate -db config.db -command down -target 0")
}
