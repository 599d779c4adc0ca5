package wordchain

import (
	"context"
	"testing"
)

// botGame seats one human plus the bot and starts; the opening random word
// "jendela" sets the prompt to "ela".
func botGame(t *testing.T, e *Engine, dict *fakeDict) {
	t.Helper()

	set := lobbySettings(30)
	set.BotOpponent = true
	if res := e.Create("chan1", "g", "u1", "Alice", set); !res.OK {
		t.Fatalf("create: %s", res.Message)
	}
	dict.pushRandom("jendela", 5)
	if tr, err := e.Start(context.Background(), "chan1", "u1"); err != nil || !tr.OK {
		t.Fatalf("start: %v", err)
	}
}

// passToBot makes the human play a word so the bot holds the turn.
func passToBot(t *testing.T, e *Engine, dict *fakeDict, word string) TurnResult {
	t.Helper()
	tr, err := e.SubmitAnswer(context.Background(), "chan1", "u1", word)
	if err != nil || !tr.OK {
		t.Fatalf("human submit %q: %v %s", word, err, tr.Message)
	}
	if tr.Next == nil || !tr.Next.IsBot {
		t.Fatal("the bot must hold the next turn")
	}
	return tr
}

func TestBotNotItsTurn(t *testing.T) {
	dict := newFakeDict()
	e, _ := newTestEngine(dict)
	botGame(t, e, dict)

	if tr := e.TakeBotTurn(context.Background(), "chan1"); tr.OK {
		t.Fatal("bot must refuse to play on the human's turn")
	}
}

func TestBotSuffixGuessing(t *testing.T) {
	dict := newFakeDict()
	dict.addWord("elam", 4) // human's word; prompt becomes "lam"
	dict.addWord("laman", 6)
	e, st := newTestEngine(dict)
	botGame(t, e, dict)

	passToBot(t, e, dict, "elam")

	tr := e.TakeBotTurn(context.Background(), "chan1")
	if !tr.OK {
		t.Fatalf("bot turn: %s", tr.Message)
	}
	if tr.Word != "laman" {
		t.Fatalf(`suffix phase must find "laman" (lam+an), got %q`, tr.Word)
	}

	s, _ := st.Get("chan1")
	if s.player(BotUserID).Points != 6 {
		t.Fatal("bot must score through the same bookkeeping as a human")
	}
	if _, used := s.Used["laman"]; !used {
		t.Fatal("bot's word must be marked used")
	}
	if tr.Next == nil || tr.Next.UserID != "u1" {
		t.Fatal("turn must return to the human")
	}
}

func TestBotSkipsUsedSuffixWord(t *testing.T) {
	dict := newFakeDict()
	dict.addWord("elam", 4)
	dict.addWord("laman", 6)
	dict.addWord("lamkan", 7)
	e, _ := newTestEngine(dict)
	botGame(t, e, dict)
	passToBot(t, e, dict, "elam")

	// Poison the obvious candidate; phase 1 must move to the next suffix.
	s, _ := e.store.Get("chan1")
	e.mu.Lock()
	s.Used["laman"] = struct{}{}
	e.mu.Unlock()

	tr := e.TakeBotTurn(context.Background(), "chan1")
	if !tr.OK || tr.Word != "lamkan" {
		t.Fatalf(`bot must skip the used word and take "lamkan", got %q (%s)`, tr.Word, tr.Message)
	}
}

func TestBotRandomProbingFallback(t *testing.T) {
	dict := newFakeDict()
	dict.addWord("elam", 4)
	// No lam+suffix entry exists, so phase 1 exhausts; the random feed
	// serves junk first and then a usable continuation.
	e, _ := newTestEngine(dict)
	botGame(t, e, dict)
	passToBot(t, e, dict, "elam")

	dict.pushRandom("pisang", 3)   // wrong prefix
	dict.pushRandom("lam", 2)      // prefix only, not strictly longer
	dict.pushRandom("lambung", 8)  // usable
	dict.pushRandom("lampiran", 9) // never reached

	tr := e.TakeBotTurn(context.Background(), "chan1")
	if !tr.OK {
		t.Fatalf("bot turn: %s", tr.Message)
	}
	if tr.Word != "lambung" {
		t.Fatalf(`random probing must pick "lambung", got %q`, tr.Word)
	}
	if tr.Points != 8 {
		t.Fatalf("bot must score the random word's points, got %d", tr.Points)
	}
}

func TestBotConcedesWhenSearchFails(t *testing.T) {
	dict := newFakeDict()
	dict.addWord("elam", 4)
	// Every random probe misses the prefix.
	dict.cycle = nil
	e, st := newTestEngine(dict)
	botGame(t, e, dict)
	passToBot(t, e, dict, "elam")

	// Random defaults to "jendela", which never matches "lam".
	tr := e.TakeBotTurn(context.Background(), "chan1")
	if !tr.OK {
		t.Fatalf("concession is a successful resolution: %s", tr.Message)
	}
	if !tr.GameEnded {
		t.Fatal("bot conceding against one human ends the game")
	}
	if tr.Winner == nil || tr.Winner.UserID != "u1" {
		t.Fatal("the human wins when the bot concedes")
	}
	if _, found := st.Get("chan1"); found {
		t.Fatal("ended session must be removed")
	}
}

func TestBotDegradesOracleErrorsToConcession(t *testing.T) {
	dict := newFakeDict()
	dict.addWord("elam", 4)
	e, _ := newTestEngine(dict)
	botGame(t, e, dict)
	passToBot(t, e, dict, "elam")

	dict.mu.Lock()
	dict.lookupErr = context.DeadlineExceeded
	dict.randomErr = context.DeadlineExceeded
	dict.mu.Unlock()

	tr := e.TakeBotTurn(context.Background(), "chan1")
	if !tr.OK || !tr.GameEnded || tr.Winner == nil || tr.Winner.UserID != "u1" {
		t.Fatal("oracle failures during the bot search must degrade to a concession")
	}
}

func TestRandomTriesScaleWithDifficulty(t *testing.T) {
	if randomTriesFor(DifficultyEasy) >= randomTriesFor(DifficultyMedium) {
		t.Fatal("easy must probe less than medium")
	}
	if randomTriesFor(DifficultyMedium) >= randomTriesFor(DifficultyHard) {
		t.Fatal("medium must probe less than hard")
	}
}
