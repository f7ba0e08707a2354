package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/football-squares/internal/config"
)

func TestDSN(t *testing.T) {
	cfg, err := mysql.ParseDSN(DSN("squares", "p@ss", "db.internal", "3306", "squares"))
	require.NoError(t, err)
	assert.Equal(t, "squares", cfg.User)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.Equal(t, "db.internal:3306", cfg.Addr)
	assert.Equal(t, "squares", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, time.UTC, cfg.Loc)
}

func TestConfigure(t *testing.T) {
	db, err := sql.Open("mysql", DSN("u", "p", "127.0.0.1", "1", "x"))
	require.NoError(t, err)
	defer db.Close()

	Configure(db, config.DBPoolConfig{MaxOpen: 3, MaxIdle: 2, MaxLifetime: time.Minute})
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)
}

func TestOpenFailsFast(t *testing.T) {
	cfg := config.Config{DBUser: "u", DBHost: "127.0.0.1", DBPort: "1", DBName: "x",
		DBPool: config.DBPoolConfig{MaxOpen: 1, MaxIdle: 1, PingTimeout: 200 * time.Millisecond}}
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}
