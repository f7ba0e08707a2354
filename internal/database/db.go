package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/football-squares/internal/config"
)

// DSN builds the driver DSN.  Times are parsed and kept in UTC, and
// clientFoundRows makes UPDATE report matched rather than changed rows,
// which the conditional square and player writes compare against.
func DSN(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	return cfg.FormatDSN()
}

// ConfigDSN is DSN over the connection fields of cfg.
func ConfigDSN(cfg config.Config) string {
	return DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// Configure applies pool limits to db.
func Configure(db *sql.DB, pool config.DBPoolConfig) {
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)
}

// Open connects to the database described by cfg and pings it within
// cfg.DBPool.PingTimeout.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", ConfigDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	Configure(db, cfg.DBPool)

	ctx, cancel := context.WithTimeout(ctx, cfg.DBPool.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql at %s:%s: %w", cfg.DBHost, cfg.DBPort, err)
	}
	return db, nil
}
