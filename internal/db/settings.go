package db

import (
	"database/sql"
	"strconv"
	"time"
)

// Keys for guild_settings. The dashboard writes these; modules read them.
const (
	SettingWordChainTurnSeconds = "wordchain.turn_seconds"
	SettingWordChainDifficulty  = "wordchain.difficulty"
	SettingWordChainMaxRolls    = "wordchain.max_rolls"
	SettingWordChainBotOpponent = "wordchain.bot_opponent"
	SettingEconomyEnabled       = "economy.enabled"
)

func GetSetting(d *sql.DB, key string) (string, bool, error) {
	var v string
	err := d.QueryRow(`SELECT value FROM guild_settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func SetSetting(d *sql.DB, key, value string) error {
	_, err := d.Exec(
		`INSERT INTO guild_settings (key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at;`,
		key, value, time.Now().Unix(),
	)
	return err
}

// GetSettingInt returns fallback when the key is absent or malformed.
func GetSettingInt(d *sql.DB, key string, fallback int) int {
	v, ok, err := GetSetting(d, key)
	if err != nil || !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func GetSettingBool(d *sql.DB, key string, fallback bool) bool {
	v, ok, err := GetSetting(d, key)
	if err != nil || !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
