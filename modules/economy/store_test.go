package economy

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KataNusa/NusaBot/internal/db"
)

func testModule(t *testing.T) *Module {
	t.Helper()
	d, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	d.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = d.Close() })

	if err := db.Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(d)
}

func TestAwardAndBalance(t *testing.T) {
	m := testModule(t)

	if err := m.Award("u1", "Alice", 50); err != nil {
		t.Fatalf("award: %v", err)
	}
	if err := m.Award("u1", "", 25); err != nil {
		t.Fatalf("award: %v", err)
	}

	coins, err := m.getBalance("u1")
	if err != nil || coins != 75 {
		t.Fatalf("balance = %d (%v), want 75", coins, err)
	}

	// An empty username must not clobber the stored one.
	var name string
	if err := m.database.QueryRow(`SELECT username FROM economy_balances WHERE user_id = 'u1'`).Scan(&name); err != nil {
		t.Fatalf("username query: %v", err)
	}
	if name != "Alice" {
		t.Fatalf("username = %q, want Alice", name)
	}
}

func TestBalanceOfUnknownUserIsZero(t *testing.T) {
	m := testModule(t)
	coins, err := m.getBalance("ghost")
	if err != nil || coins != 0 {
		t.Fatalf("balance = %d (%v), want 0", coins, err)
	}
}

func TestEarnCooldown(t *testing.T) {
	m := testModule(t)

	credited, err := m.earnWithCooldown("u1", "Alice", 2, time.Hour)
	if err != nil || !credited {
		t.Fatalf("first earn must credit: %v", err)
	}
	credited, err = m.earnWithCooldown("u1", "Alice", 2, time.Hour)
	if err != nil || credited {
		t.Fatalf("second earn inside the window must not credit: %v", err)
	}

	coins, _ := m.getBalance("u1")
	if coins != 2 {
		t.Fatalf("balance = %d, want 2", coins)
	}

	// Zero cooldown always credits.
	credited, err = m.earnWithCooldown("u1", "Alice", 2, 0)
	if err != nil || !credited {
		t.Fatalf("zero cooldown must credit: %v", err)
	}
}

func TestSpendGuardsBalance(t *testing.T) {
	m := testModule(t)
	_ = m.Award("u1", "Alice", 30)

	if err := m.spend("u1", 40); err != ErrInsufficientFunds {
		t.Fatalf("overspend must fail with ErrInsufficientFunds, got %v", err)
	}
	if err := m.spend("ghost", 1); err != ErrInsufficientFunds {
		t.Fatalf("unknown user must fail with ErrInsufficientFunds, got %v", err)
	}
	if err := m.spend("u1", 30); err != nil {
		t.Fatalf("exact spend must succeed: %v", err)
	}

	coins, _ := m.getBalance("u1")
	if coins != 0 {
		t.Fatalf("balance = %d, want 0", coins)
	}
}

func TestShopItemsAndPurchases(t *testing.T) {
	m := testModule(t)

	res, err := m.database.Exec(
		`INSERT INTO shop_items (name, price, role_id, enabled) VALUES ('VIP', 100, 'role1', 1)`,
	)
	if err != nil {
		t.Fatalf("seed item: %v", err)
	}
	itemID, _ := res.LastInsertId()
	if _, err := m.database.Exec(
		`INSERT INTO shop_items (name, price, role_id, enabled) VALUES ('Retired', 10, '', 0)`,
	); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	items, err := m.listShopItems()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Name != "VIP" {
		t.Fatalf("disabled items must be hidden, got %v", items)
	}

	it, err := m.getShopItem(itemID)
	if err != nil || it == nil || it.Price != 100 || it.RoleID != "role1" {
		t.Fatalf("getShopItem = %v (%v)", it, err)
	}
	if it, _ := m.getShopItem(999); it != nil {
		t.Fatal("missing item must come back nil")
	}

	owned, _ := m.hasPurchased("u1", itemID)
	if owned {
		t.Fatal("nothing purchased yet")
	}
	if err := m.recordPurchase("u1", itemID, 100); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Replays are swallowed by the primary key.
	if err := m.recordPurchase("u1", itemID, 100); err != nil {
		t.Fatalf("duplicate record must be a no-op: %v", err)
	}
	owned, _ = m.hasPurchased("u1", itemID)
	if !owned {
		t.Fatal("purchase not visible")
	}
}

func TestLeaderboardOrderAndRank(t *testing.T) {
	m := testModule(t)
	_ = m.Award("u1", "Alice", 10)
	_ = m.Award("u2", "Bob", 30)
	_ = m.Award("u3", "Cara", 20)

	rows, err := m.fetchLeaderboard()
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 3 || rows[0].UserID != "u2" || rows[1].UserID != "u3" || rows[2].UserID != "u1" {
		t.Fatalf("order wrong: %v", rows)
	}

	if rank, _ := m.rankOf("u3"); rank != 2 {
		t.Fatalf("rank of u3 = %d, want 2", rank)
	}
	if rank, _ := m.rankOf("ghost"); rank != 0 {
		t.Fatalf("rank of unknown = %d, want 0", rank)
	}
}
