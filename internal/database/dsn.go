package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/rzpsarthak13/docshelf/internal/config"
	"github.com/rzpsarthak13/docshelf/internal/core"
)

// sqliteBusyTimeout lets concurrent writers on one file wait for the lock
// instead of failing with SQLITE_BUSY.
const sqliteBusyTimeout = 5 * time.Second

// BuildDSN renders the driver connection string for cfg.
func BuildDSN(d core.Dialect, cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}

	switch d.Name() {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		mc.ClientFoundRows = true
		mc.Loc = time.UTC
		mc.Timeout = cfg.ConnectionTimeout
		return mc.FormatDSN(), nil

	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.Username, cfg.Password),
			Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:   "/" + cfg.Database,
		}
		q := url.Values{}
		if cfg.SSLMode != "" {
			q.Set("sslmode", cfg.SSLMode)
		}
		if cfg.ConnectionTimeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectionTimeout.Seconds())))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil

	case "sqlite":
		if cfg.Path == "" {
			return "", fmt.Errorf("sqlite requires a database path")
		}
		sep := "?"
		if strings.Contains(cfg.Path, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_time_format=sqlite",
			cfg.Path, sep, sqliteBusyTimeout.Milliseconds()), nil

	default:
		return "", fmt.Errorf("no DSN builder for %s", d.Name())
	}
}
