package db

import (
	"database/sql"
	"fmt"
	"unicode"
)

// Migrate ensures the SQLite schema is up-to-date.
// NusaBot is single-server: no guild_id on per-user tables.
func Migrate(d *sql.DB) error {
	// Base schema (idempotent)
	stmts := []string{
		// Bot-wide key/value settings, editable from the web dashboard.
		`CREATE TABLE IF NOT EXISTS guild_settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT 0
		);`,

		// Economy balances (aura coins)
		`CREATE TABLE IF NOT EXISTS economy_balances (
			user_id      TEXT PRIMARY KEY,
			username     TEXT NOT NULL DEFAULT '',
			coins        INTEGER NOT NULL DEFAULT 0,
			last_earn_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_economy_balances_coins ON economy_balances(coins DESC);`,

		// Shop items (role grants) + purchase history
		`CREATE TABLE IF NOT EXISTS shop_items (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			name    TEXT NOT NULL,
			price   INTEGER NOT NULL,
			role_id TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE TABLE IF NOT EXISTS shop_purchases (
			user_id      TEXT NOT NULL,
			item_id      INTEGER NOT NULL,
			price_paid   INTEGER NOT NULL,
			purchased_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, item_id)
		);`,

		// Anonymous confessions: public message + private audit row.
		`CREATE TABLE IF NOT EXISTS confessions (
			number      INTEGER PRIMARY KEY AUTOINCREMENT,
			audit_token TEXT NOT NULL,
			author_id   TEXT NOT NULL,
			channel_id  TEXT NOT NULL,
			message_id  TEXT NOT NULL DEFAULT '',
			created_at  INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_confessions_author ON confessions(author_id);`,

		// Word-chain lifetime stats (game sessions themselves are memory-only).
		`CREATE TABLE IF NOT EXISTS wordchain_stats (
			user_id        TEXT PRIMARY KEY,
			username       TEXT NOT NULL DEFAULT '',
			games          INTEGER NOT NULL DEFAULT 0,
			wins           INTEGER NOT NULL DEFAULT 0,
			points         INTEGER NOT NULL DEFAULT 0,
			last_played_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_wordchain_stats_wins ON wordchain_stats(wins DESC, points DESC);`,
	}

	for _, q := range stmts {
		if _, err := d.Exec(q); err != nil {
			return err
		}
	}

	// Additive schema upgrades (safe on existing DBs)
	if err := ensureColumn(d, "economy_balances", "last_earn_at", `ALTER TABLE economy_balances ADD COLUMN last_earn_at INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	if err := ensureColumn(d, "shop_items", "enabled", `ALTER TABLE shop_items ADD COLUMN enabled INTEGER NOT NULL DEFAULT 1`); err != nil {
		return err
	}
	if err := ensureColumn(d, "wordchain_stats", "last_played_at", `ALTER TABLE wordchain_stats ADD COLUMN last_played_at INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}

	return nil
}

func ensureColumn(d *sql.DB, table, column, alterSQL string) error {
	ok, err := hasColumn(d, table, column)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	_, err = d.Exec(alterSQL)
	return err
}

func hasColumn(d *sql.DB, table, column string) (bool, error) {
	if !isSafeSQLiteIdent(table) {
		return false, fmt.Errorf("unsafe table name: %q", table)
	}

	rows, err := d.Query(fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func isSafeSQLiteIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '_' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
