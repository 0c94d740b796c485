package database

import (
	"crimemap/internal/config"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"
)

const (
	DriverPG     = "pg"
	DriverPGX    = "pgx"
	DriverSQLite = "sqlite"
)

// statementTimeout is sent as a startup parameter so it holds on every
// pooled connection.
const statementTimeout = "60s"

// New connects to the configured database and returns a Bun DB handle.
func New(cfg *config.Config) (*bun.DB, error) {
	db, err := Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Optional query logging
	if cfg.BunDebug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Open builds the bun handle for a driver without touching the network.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverPG, "":
		connector := pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithTimeout(60*time.Second),
			pgdriver.WithDialTimeout(15*time.Second),
			pgdriver.WithReadTimeout(60*time.Second),
			pgdriver.WithWriteTimeout(30*time.Second),
			pgdriver.WithConnParams(map[string]interface{}{
				"statement_timeout": statementTimeout,
			}),
		)
		sqldb := sql.OpenDB(connector)
		configurePool(sqldb)
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case DriverPGX:
		connCfg, err := pgxConfig(dsn)
		if err != nil {
			return nil, err
		}
		sqldb := stdlib.OpenDB(*connCfg)
		configurePool(sqldb)
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// a single writer keeps in-memory databases on one connection
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// pgxConfig parses dsn and applies the session settings every pooled
// connection starts with. Settings already present in dsn win.
func pgxConfig(dsn string) (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx dsn: %w", err)
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = make(map[string]string)
	}
	if _, ok := connCfg.RuntimeParams["statement_timeout"]; !ok {
		connCfg.RuntimeParams["statement_timeout"] = statementTimeout
	}
	return connCfg, nil
}

func configurePool(sqldb *sql.DB) {
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(10)
	sqldb.SetConnMaxLifetime(5 * time.Minute)
	sqldb.SetConnMaxIdleTime(10 * time.Minute)
}
