package economy

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

var ErrInsufficientFunds = errors.New("not enough coins")

type balanceRow struct {
	UserID   string
	Username string
	Coins    int64
}

type shopItem struct {
	ID      int64
	Name    string
	Price   int64
	RoleID  string
	Enabled bool
}

func (m *Module) getBalance(userID string) (int64, error) {
	var coins int64
	err := m.database.QueryRow(`SELECT coins FROM economy_balances WHERE user_id = ?`, userID).Scan(&coins)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return coins, err
}

func (m *Module) addCoins(userID, username string, amount int64) error {
	username = strings.TrimSpace(username)
	_, err := m.database.Exec(
		`INSERT INTO economy_balances (user_id, username, coins, last_earn_at)
		 VALUES (?, ?, ?, 0)
		 ON CONFLICT(user_id) DO UPDATE SET
			username = CASE WHEN excluded.username != '' THEN excluded.username ELSE economy_balances.username END,
			coins = economy_balances.coins + excluded.coins;`,
		userID, username, amount,
	)
	return err
}

// earnWithCooldown credits amount unless the user earned within the window.
// Reports whether anything was credited.
func (m *Module) earnWithCooldown(userID, username string, amount int64, cooldown time.Duration) (bool, error) {
	tx, err := m.database.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var lastEarn int64
	err = tx.QueryRow(`SELECT last_earn_at FROM economy_balances WHERE user_id = ?`, userID).Scan(&lastEarn)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	now := time.Now().Unix()
	if lastEarn > 0 && now-lastEarn < int64(cooldown.Seconds()) {
		return false, nil
	}

	username = strings.TrimSpace(username)
	_, err = tx.Exec(
		`INSERT INTO economy_balances (user_id, username, coins, last_earn_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			username = CASE WHEN excluded.username != '' THEN excluded.username ELSE economy_balances.username END,
			coins = economy_balances.coins + excluded.coins,
			last_earn_at = excluded.last_earn_at;`,
		userID, username, amount, now,
	)
	if err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// spend deducts atomically; the balance can never go negative.
func (m *Module) spend(userID string, amount int64) error {
	tx, err := m.database.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var coins int64
	err = tx.QueryRow(`SELECT coins FROM economy_balances WHERE user_id = ?`, userID).Scan(&coins)
	if err == sql.ErrNoRows || (err == nil && coins < amount) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE economy_balances SET coins = coins - ? WHERE user_id = ?`,
		amount, userID,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Module) listShopItems() ([]shopItem, error) {
	rows, err := m.database.Query(
		`SELECT id, name, price, role_id, enabled
		 FROM shop_items
		 WHERE enabled = 1
		 ORDER BY price ASC, id ASC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shopItem
	for rows.Next() {
		var it shopItem
		var enabled int
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.RoleID, &enabled); err != nil {
			return nil, err
		}
		it.Enabled = enabled != 0
		out = append(out, it)
	}
	return out, rows.Err()
}

func (m *Module) getShopItem(id int64) (*shopItem, error) {
	var it shopItem
	var enabled int
	err := m.database.QueryRow(
		`SELECT id, name, price, role_id, enabled FROM shop_items WHERE id = ?`,
		id,
	).Scan(&it.ID, &it.Name, &it.Price, &it.RoleID, &enabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	it.Enabled = enabled != 0
	return &it, nil
}

func (m *Module) hasPurchased(userID string, itemID int64) (bool, error) {
	var one int
	err := m.database.QueryRow(
		`SELECT 1 FROM shop_purchases WHERE user_id = ? AND item_id = ?`,
		userID, itemID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (m *Module) recordPurchase(userID string, itemID, price int64) error {
	_, err := m.database.Exec(
		`INSERT INTO shop_purchases (user_id, item_id, price_paid, purchased_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, item_id) DO NOTHING;`,
		userID, itemID, price, time.Now().Unix(),
	)
	return err
}

func (m *Module) fetchLeaderboard() ([]balanceRow, error) {
	rows, err := m.database.Query(
		`SELECT user_id, username, coins
		 FROM economy_balances
		 WHERE coins > 0
		 ORDER BY coins DESC, last_earn_at DESC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []balanceRow
	for rows.Next() {
		var r balanceRow
		if err := rows.Scan(&r.UserID, &r.Username, &r.Coins); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// rank = 1 + users strictly richer
func (m *Module) rankOf(userID string) (int64, error) {
	var coins int64
	err := m.database.QueryRow(`SELECT coins FROM economy_balances WHERE user_id = ?`, userID).Scan(&coins)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var above int64
	if err := m.database.QueryRow(
		`SELECT COUNT(*) FROM economy_balances WHERE coins > ?`, coins,
	).Scan(&above); err != nil {
		return 0, err
	}
	return above + 1, nil
}
