package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open prepares the bot's sqlite database. A single connection is enough:
// every writer (game stats, economy, confessions, dashboard) funnels through
// it, and WAL keeps the dashboard's reads from blocking the bot.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0755)
	}

	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	d.SetMaxOpenConns(1)
	d.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := d.ExecContext(ctx, pragma); err != nil {
			_ = d.Close()
			return nil, err
		}
	}

	return &DB{DB: d}, nil
}
