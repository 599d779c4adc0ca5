package wordchain

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"Makan", "makan"},
		{"  di-a ", "dia"},
		{"KAN!", "kan"},
		{"123", ""},
		{"", ""},
	} {
		if got := normalize(tc.in); got != tc.want {
			t.Fatalf("normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAnswerForms(t *testing.T) {
	got := answerForms("Me-makan", "makan")
	want := []string{"me-makan", "memakan", "makan"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("answerForms = %v, want %v", got, want)
	}

	// Identical surface and lemma collapse to a single form.
	if got := answerForms("kata", "kata"); !reflect.DeepEqual(got, []string{"kata"}) {
		t.Fatalf("dedup failed: %v", got)
	}
}

func TestActiveSubsetAndCurrentPlayer(t *testing.T) {
	s := &Session{
		Players: []*Player{
			{UserID: "a"},
			{UserID: "b", GaveUp: true},
			{UserID: "c"},
		},
		TurnIndex: 1,
	}

	act := s.active()
	if len(act) != 2 || act[0].UserID != "a" || act[1].UserID != "c" {
		t.Fatalf("active subset wrong: %v", act)
	}
	if cur := s.currentPlayer(); cur == nil || cur.UserID != "c" {
		t.Fatal("index 1 of the active subset must be c")
	}

	s.TurnIndex = 2 // wraps modulo the active count
	if cur := s.currentPlayer(); cur == nil || cur.UserID != "a" {
		t.Fatal("turn index must wrap over the active subset")
	}
}
