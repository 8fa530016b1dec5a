package database

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type Config struct {
	Driver             string
	URL                string
	MaxConnections     int
	MaxIdle            int
	ConnectionLifetime time.Duration
}

var db *sql.DB

// Initialize opens the run store and creates its tables when missing. Supported
// drivers are "postgres" and "sqlite".
func Initialize(cfg Config) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	db = conn
	return nil
}

// Open connects to the run store without touching the package-level handle.
func Open(cfg Config) (*sql.DB, error) {
	driver, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	maxOpen := cfg.MaxConnections
	if driver == "sqlite" {
		// one writer keeps sqlite from returning SQLITE_BUSY
		maxOpen = 1
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(cfg.MaxIdle)
	conn.SetConnMaxLifetime(cfg.ConnectionLifetime)

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := migrate(conn, driver); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}

	log.WithField("driver", driver).Info("Connected to run store")
	return conn, nil
}

func driverName(name string) (string, error) {
	switch name {
	case "postgres", "postgresql", "pq":
		return "postgres", nil
	case "sqlite", "sqlite3", "":
		return "sqlite", nil
	default:
		return "", errors.Errorf("unsupported database driver %q", name)
	}
}

func migrate(conn *sql.DB, driver string) error {
	serial := "SERIAL PRIMARY KEY"
	if driver == "sqlite" {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id ` + serial + `,
			query TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			status TEXT NOT NULL,
			videos_found INTEGER NOT NULL DEFAULT 0,
			videos_scraped INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			details TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS videos (
			id ` + serial + `,
			video_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			likes INTEGER NOT NULL,
			dislikes INTEGER NOT NULL,
			view_count TEXT NOT NULL,
			category TEXT NOT NULL,
			keywords TEXT,
			short_description TEXT NOT NULL,
			is_unlisted BOOLEAN NOT NULL,
			publish_date TEXT NOT NULL,
			upload_date TEXT NOT NULL,
			scraped_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id ` + serial + `,
			video_id TEXT NOT NULL,
			author TEXT NOT NULL,
			likes TEXT NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_video_id ON comments (video_id)`,
	}

	for _, stmt := range statements {
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func GetDB() *sql.DB {
	return db
}

func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
