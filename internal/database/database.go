package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = errors.New("not found")

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Client is the metadata store for users, refresh tokens and videos.
type Client struct {
	db     *sql.DB
	driver string
}

// NewClient opens the database and creates missing tables. For sqlite3 dsn is
// a file path, for postgres a connection URL.
func NewClient(driver, dsn string) (Client, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return Client{}, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return Client{}, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return Client{}, fmt.Errorf("failed to ping database: %w", err)
	}
	if driver == DriverSQLite {
		// A single connection serialises writers; sqlite locks the whole file anyway.
		db.SetMaxOpenConns(1)
	}

	c := Client{db: db, driver: driver}
	if _, err := c.db.Exec(schema); err != nil {
		db.Close()
		return Client{}, fmt.Errorf("failed to migrate database: %w", err)
	}
	return c, nil
}

func (c Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (c Client) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c Client) exec(query string, args ...any) (sql.Result, error) {
	return c.db.Exec(c.rebind(query), args...)
}

func (c Client) queryRow(query string, args ...any) *sql.Row {
	return c.db.QueryRow(c.rebind(query), args...)
}

func (c Client) query(query string, args ...any) (*sql.Rows, error) {
	return c.db.Query(c.rebind(query), args...)
}

// Reset deletes every row. Only used on the dev platform.
func (c Client) Reset() error {
	for _, table := range []string{"refresh_tokens", "videos", "users"} {
		if _, err := c.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to reset table %s: %w", table, err)
		}
	}
	return nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	email TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
	token TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	revoked_at TIMESTAMP,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT,
	video_url TEXT,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
	email TEXT UNIQUE NOT NULL,
	password TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS refresh_tokens (
	token TEXT PRIMARY KEY,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
	revoked_at TIMESTAMP WITH TIME ZONE,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE TABLE IF NOT EXISTS videos (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	thumbnail_url TEXT,
	video_url TEXT,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_videos_user_id ON videos(user_id);
`
