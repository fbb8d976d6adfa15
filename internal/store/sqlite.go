package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	// defaultMaxConns caps open/idle connections; sqlite wants a single
	// writer with potentially many readers.
	defaultMaxConns = 25

	// defaultConnMaxLifetime bounds how long a pooled connection lives.
	defaultConnMaxLifetime = 10 * time.Minute

	// LatestMigrationVersion must be bumped whenever a migration is
	// added under migrations/.
	LatestMigrationVersion uint = 1
)

// ErrMigrationDowngrade is returned when the database's migration version
// is newer than this binary knows about.
var ErrMigrationDowngrade = errors.New("store: database migration downgrade detected")

// SqliteConfig configures a sqlite-backed Store.
type SqliteConfig struct {
	// DatabaseFileName is the path to the sqlite database file.
	DatabaseFileName string

	// SkipMigrations, if true, leaves the schema untouched on open.
	SkipMigrations bool
}

// SqliteStore is a sqlite3-backed dead-letter-office/audit Store.
type SqliteStore struct {
	cfg *SqliteConfig
	log *slog.Logger

	*Store
}

// NewSqliteStore opens (creating if necessary) a sqlite database at
// cfg.DatabaseFileName, applies pragmas, and runs migrations unless
// skipped. Grounded on internal/db/sqlite.go's NewSqliteStore.
func NewSqliteStore(cfg *SqliteConfig, log *slog.Logger) (*SqliteStore, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := OpenSQLite(cfg.DatabaseFileName)
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{
		cfg:   cfg,
		log:   log,
		Store: NewStoreWithLogger(db, log),
	}

	if !cfg.SkipMigrations {
		if err := s.runMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("error executing migrations: %w", err)
		}
	}

	return s, nil
}

func (s *SqliteStore) runMigrations() error {
	driver, err := sqlite_migrate.WithInstance(s.DB(), &sqlite_migrate.Config{})
	if err != nil {
		return fmt.Errorf("error creating sqlite migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("error opening embedded migrations: %w", err)
	}

	mig, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("error creating migration instance: %w", err)
	}
	mig.Log = &migrationLogger{s.log}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("unable to determine migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty state at version %v, "+
			"manual intervention required", version)
	}
	if version > LatestMigrationVersion {
		return fmt.Errorf("%w: db_version=%v, latest_known_version=%v",
			ErrMigrationDowngrade, version, LatestMigrationVersion)
	}

	s.log.InfoContext(context.Background(), "applying dead-letter store migrations",
		"current_version", version, "latest_version", LatestMigrationVersion,
	)

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// migrationLogger adapts slog.Logger to migrate.Logger.
type migrationLogger struct {
	log *slog.Logger
}

func (m *migrationLogger) Printf(format string, v ...any) {
	format = strings.TrimRight(format, "\n")
	m.log.Info(fmt.Sprintf(format, v...))
}

func (m *migrationLogger) Verbose() bool { return true }

// OpenSQLite opens a sqlite database connection with WAL mode and
// performance pragmas applied, without running migrations.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxConns)
	db.SetMaxIdleConns(defaultMaxConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return db, nil
}

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// DefaultDBPath returns the default path for the dead-letter store database.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".solidframe", "store.db"), nil
}
