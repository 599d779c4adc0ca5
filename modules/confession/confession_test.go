package confession

import (
	"database/sql"
	"testing"

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
	return New(d, "chan1")
}

func TestConfessionNumbersAreSequential(t *testing.T) {
	m := testModule(t)

	n1, tok1, err := m.insertConfession("u1")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	n2, tok2, err := m.insertConfession("u2")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if n1 != 1 || n2 != 2 {
		t.Fatalf("numbers = %d, %d; want 1, 2", n1, n2)
	}
	if tok1 == "" || tok1 == tok2 {
		t.Fatal("audit tokens must be unique and non-empty")
	}
}

func TestAuditRowLinksAuthorWithoutExposure(t *testing.T) {
	m := testModule(t)

	n, token, err := m.insertConfession("u1")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.setMessageID(n, "msg42"); err != nil {
		t.Fatalf("set message id: %v", err)
	}

	var author, gotToken, msgID string
	err = m.database.QueryRow(
		`SELECT author_id, audit_token, message_id FROM confessions WHERE number = ?`, n,
	).Scan(&author, &gotToken, &msgID)
	if err != nil {
		t.Fatalf("audit query: %v", err)
	}
	if author != "u1" || gotToken != token || msgID != "msg42" {
		t.Fatalf("audit row = %q %q %q", author, gotToken, msgID)
	}
}
