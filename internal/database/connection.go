// Package database reads stored training rows over sqlx from PostgreSQL or
// MySQL.
package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
)

const (
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 2
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultPingTimeout     = 5 * time.Second
)

// DSN builds the driver name and data source name for cfg.
func DSN(cfg config.DatabaseConfig) (driver, dsn string, err error) {
	switch cfg.Driver {
	case "postgres":
		return "postgres", fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
		), nil
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
		mc.DBName = cfg.Name
		mc.ParseTime = true
		return "mysql", mc.FormatDSN(), nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewConnection opens a pooled connection and verifies it with a ping.
func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driver, dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, nil
}
