package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "data.db"

	driverSQLite   = "sqlite"
	driverPostgres = "postgres"

	schemaVersion = 1

	insertSchemaVersionSQL = `INSERT INTO schema_version (version)
		SELECT CAST(? AS INTEGER) WHERE NOT EXISTS (SELECT 1 FROM schema_version WHERE version = ?)`

	sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// IsPostgres reports whether the DSN points to a Postgres server
// rather than a local Sqlite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Init creates the schema if needed. Safe to call on an existing database.
func Init(dsn string) error {
	if dsn == "" {
		return errors.New("dsn not specified")
	}

	if !IsPostgres(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
			return fmt.Errorf("creating database dir for %s: %w", dsn, err)
		}
	}

	db, err := GetDB(dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	defer db.Close()

	b, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("failed to read the schema creation file: %w", err)
	}

	slog.Debug("applying db schema", "version", schemaVersion)
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	if _, err := db.Exec(rebind(db, insertSchemaVersionSQL), schemaVersion, schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// GetDB opens the database behind dsn: Postgres for postgres:// URLs,
// otherwise a Sqlite file path.
func GetDB(dsn string) (*sql.DB, error) {
	if IsPostgres(dsn) {
		conn, err := sql.Open(driverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		return conn, nil
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open(driverSQLite, "file:"+dsn+sep+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dsn, err)
	}
	// single writer
	conn.SetMaxOpenConns(1)
	return conn, nil
}

func isPostgres(db *sql.DB) bool {
	_, ok := db.Driver().(*pq.Driver)
	return ok
}

// rebind converts ? placeholders to $N for Postgres.
func rebind(db *sql.DB, query string) string {
	if !isPostgres(db) {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
