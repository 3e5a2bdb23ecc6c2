package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shareit/internal/config"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // sqlite3 dialect
	_ "github.com/lib/pq"                               // postgres driver
	_ "github.com/mattn/go-sqlite3"                     // sqlite3 driver
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	dialect   goqu.DialectWrapper
	returning bool
	path      string
	logger    *zerolog.Logger
}

// Open выбирает драйвер по конфигурации
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresDB(cfg.Postgres, logger)
	case config.DriverSQLite, "":
		return NewDB(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// одно соединение: :memory: живёт в рамках соединения, а запись в sqlite всё равно последовательная
	sqlDB.SetMaxOpenConns(1)

	db := &DB{
		DB:      sqlDB,
		dialect: goqu.Dialect("sqlite3"),
		path:    path,
		logger:  logger,
	}
	if err := db.init(sqliteSchema); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("SQLite database initialized")
	return db, nil
}

func NewPostgresDB(cfg config.PostgresConfig, logger *zerolog.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}

	db := &DB{
		DB:        sqlDB,
		dialect:   goqu.Dialect("postgres"),
		returning: true,
		logger:    logger,
	}
	if err := db.init(postgresSchema); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("PostgreSQL database initialized")
	return db, nil
}

func (db *DB) init(schema []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return nil
}

// Path возвращает путь к файлу sqlite, пустой для postgres
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Время хранится в unix-микросекундах: сравнения в SQL совпадают с Go, а
// диапазон int64 покрывает любые годы time.Time, в отличие от наносекунд.
func toUnix(t time.Time) int64 {
	return t.UnixMicro()
}

func fromUnix(n int64) time.Time {
	return time.UnixMicro(n).UTC()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		available BOOLEAN NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id),
		booker_id INTEGER NOT NULL REFERENCES users(id),
		start_at INTEGER NOT NULL,
		end_at INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'WAITING',
		version INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		CHECK (start_at < end_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_item_id ON bookings(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_booker_id ON bookings(booker_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_end_at ON bookings(end_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		available BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		item_id BIGINT NOT NULL REFERENCES items(id),
		booker_id BIGINT NOT NULL REFERENCES users(id),
		start_at BIGINT NOT NULL,
		end_at BIGINT NOT NULL,
		status TEXT NOT NULL DEFAULT 'WAITING',
		version BIGINT NOT NULL DEFAULT 1,
		created_at BIGINT NOT NULL,
		CHECK (start_at < end_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_owner_id ON items(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_item_id ON bookings(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_booker_id ON bookings(booker_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_end_at ON bookings(end_at)`,
}
