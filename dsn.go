package dbal

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Config describes one connection target. It replaces any global
// per-dialect DSN registry: the caller selects the dialect explicitly and
// an unset Port falls back to the dialect's default.
type Config struct {
	Dialect  Dialect
	Host     string
	Port     int
	Username string
	Password string
	Database string            // for SQLite, the file path
	Params   map[string]string // extra driver parameters, e.g. sslmode, charset
}

// Open builds the DSN from cfg, opens the handle, and verifies the
// connection with a ping. A connection failure is a hard error; no
// partially initialized wrapper is ever returned.
//
// Importing this package registers the "mysql" driver. Postgres and SQLite
// use the "pgx" and "sqlite3" driver names; the caller imports those.
func Open(cfg Config) (*DB, error) {
	sdb, err := sql.Open(cfg.driverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("dbal: open %s: %w", cfg.Dialect, err)
	}
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, fmt.Errorf("dbal: connect %s: %w", cfg.Dialect, err)
	}
	return New(sdb, cfg.Dialect), nil
}

// DSN renders the connection string for the configured dialect.
func (c Config) DSN() string {
	switch c.Dialect {
	case MySQL:
		mc := mysql.NewConfig()
		mc.User = c.Username
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.port()))
		mc.DBName = c.Database
		if len(c.Params) > 0 {
			mc.Params = make(map[string]string, len(c.Params))
			for k, v := range c.Params {
				mc.Params[k] = v
			}
		}
		return mc.FormatDSN()
	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.port())),
			Path:   "/" + c.Database,
		}
		if c.Username != "" {
			if c.Password != "" {
				u.User = url.UserPassword(c.Username, c.Password)
			} else {
				u.User = url.User(c.Username)
			}
		}
		if len(c.Params) > 0 {
			q := url.Values{}
			for k, v := range c.Params {
				q.Set(k, v)
			}
			u.RawQuery = q.Encode()
		}
		return u.String()
	default: // SQLite
		return c.Database
	}
}

// port returns the configured port or the dialect default.
func (c Config) port() int {
	if c.Port != 0 {
		return c.Port
	}
	switch c.Dialect {
	case Postgres:
		return 5432
	default:
		return 3306
	}
}

func (c Config) driverName() string {
	switch c.Dialect {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite3"
	default:
		return "mysql"
	}
}
