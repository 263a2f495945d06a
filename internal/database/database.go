package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

//go:embed migrations/*.sql
var migrations embed.FS

// InitDB opens the database and applies the embedded migrations.
// With an empty primaryURL dbPath is a local SQLite file (or ":memory:");
// otherwise the remote Turso database at primaryURL is used.
func InitDB(dbPath string, primaryURL string, authToken string) (*sql.DB, func(), error) {
	var (
		db  *sql.DB
		err error
	)
	if primaryURL == "" {
		log.Info("Initializing local-only SQLite database", "path", dbPath)
		db, err = sql.Open("sqlite3", localDSN(dbPath))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local database: %w", err)
		}
		// One connection keeps ":memory:" databases shared and serializes SQLite writers.
		db.SetMaxOpenConns(1)
	} else {
		log.Info("Initializing Turso database", "url", primaryURL)
		db, err = sql.Open("libsql", primaryURL+"?authToken="+authToken)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db %s: %w", primaryURL, err)
		}
	}

	if err = migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	teardown := func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", "error", err)
		}
	}
	log.Info("Database initialized successfully")
	return db, teardown, nil
}

func localDSN(dbPath string) string {
	dsn := dbPath
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}
