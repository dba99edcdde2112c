package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-timeline/internal/config"
	"ms-timeline/internal/models"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseURL splits a DATABASE_URL into a driver and the DSN that driver expects.
//
//	sqlite:///events.db        -> sqlite, file:events.db
//	sqlite:////var/lib/ev.db   -> sqlite, file:/var/lib/ev.db
//	sqlite://:memory:          -> sqlite, :memory:
//	file:events.db?mode=rwc    -> sqlite, unchanged
//	postgres://... / postgresql://... -> postgres, unchanged
func ParseURL(raw string) (Driver, string, error) {
	url := strings.TrimSpace(raw)
	switch {
	case url == "":
		return "", "", fmt.Errorf("empty database url")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case url == ":memory:", url == "sqlite://:memory:", url == "sqlite:///:memory:":
		return DriverSQLite, ":memory:", nil
	case strings.HasPrefix(url, "sqlite:///"):
		return DriverSQLite, "file:" + strings.TrimPrefix(url, "sqlite:///"), nil
	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite, "file:" + strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "file:"):
		return DriverSQLite, url, nil
	}
	return "", "", fmt.Errorf("unsupported database url %q", raw)
}

// Open connects to the configured store and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	driver, dsn, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	var sqldb *sql.DB
	switch driver {
	case DriverPostgres:
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	default:
		sqldb, err = sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection: SQLite has a single writer, and an in-memory
		// database only lives as long as its connection.
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		sqldb.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == DriverPostgres {
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// EnsureSchema creates the events table if it does not exist yet.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.Event)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create events table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.Event)(nil)).
		Index("events_order_start_idx").
		Column("order", "start_date").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create events index: %w", err)
	}
	return nil
}
