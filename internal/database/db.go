package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Options selects the storage engine.  The embedded SQLite file is the
// default; MySQL is accepted for installs that keep the store on a server.
type Options struct {
	Driver string // "sqlite" or "mysql"
	Path   string // sqlite file path
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
}

// Open connects to the configured engine and verifies the connection.  The
// returned Dialect carries the engine-specific SQL the repositories need.
func Open(opts Options) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	var db *sql.DB
	switch dialect.Name {
	case DriverSQLite:
		db, err = openSQLite(opts.Path)
	case DriverMySQL:
		db, err = openMySQL(opts)
	}
	if err != nil {
		return nil, Dialect{}, err
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, err
	}
	return db, dialect, nil
}

// openSQLite opens the embedded database.  foreign_keys enables the cascade
// rules on cart_items, busy_timeout makes concurrent writers wait instead of
// failing, and _txlock=immediate takes the write lock at BEGIN so a
// transaction that reads before it writes cannot fail on lock upgrade.
func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database: sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("database: create %s: %w", dir, err)
		}
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	return db, nil
}

func openMySQL(opts Options) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Pass
	cfg.Net = "tcp"
	cfg.Addr = opts.Host + ":" + opts.Port
	cfg.DBName = opts.Name
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// RowsAffected counts matched rows, as SQLite does.
	cfg.ClientFoundRows = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}
