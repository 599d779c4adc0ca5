package wordchain

import (
	"context"
	"log"
	"strings"

	"github.com/KataNusa/NusaBot/internal/kbbi"
)

// Common Indonesian word endings, tried in order against the required
// prefix before we fall back to random probing. Cheap lookups first.
var botSuffixes = []string{
	"an", "kan", "i", "nya", "a", "u", "ah", "ir", "ur", "as", "is", "us", "at", "it",
}

// randomTriesFor bounds phase-two probing. Harder lobbies get a more
// stubborn bot.
func randomTriesFor(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return 10
	case DifficultyHard:
		return 30
	default:
		return 20
	}
}

// TakeBotTurn plays one turn for the synthetic opponent. Two-phase search:
// suffix guessing against the prompt, then bounded random probing. If both
// come up empty (or the dictionary keeps erroring) the bot concedes through
// the normal give-up path; an accepted word flows through the identical
// accept bookkeeping a human answer does.
func (e *Engine) TakeBotTurn(ctx context.Context, channelID string) TurnResult {
	e.mu.Lock()
	s, found := e.store.Get(channelID)
	if !found || s.Status != StatusPlaying {
		e.mu.Unlock()
		return turnFail("The game is not in progress.")
	}
	p := s.currentPlayer()
	if p == nil || !p.IsBot {
		e.mu.Unlock()
		return turnFail("It is not the bot's turn.")
	}

	prefix := s.Prompt.Match
	gen := s.turnGen
	tries := randomTriesFor(s.Settings.Difficulty)

	// Snapshot for candidate filtering while we search unlocked. The set
	// only grows, and only through this turn, so a snapshot is safe.
	used := make(map[string]struct{}, len(s.Used))
	for f := range s.Used {
		used[f] = struct{}{}
	}
	e.mu.Unlock()

	word, lr, foundWord := e.searchBotWord(ctx, prefix, used, tries)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, found = e.store.Get(channelID)
	if !found || s.Status != StatusPlaying || s.turnGen != gen {
		return turnFail("That turn is already over.")
	}
	p = s.currentPlayer()
	if p == nil || !p.IsBot {
		return turnFail("It is not the bot's turn.")
	}

	if !foundWord {
		return e.resolveGiveUp(s, p, "could not find a word and gives up")
	}
	return e.accept(s, p, word, lr)
}

func (e *Engine) searchBotWord(ctx context.Context, prefix string, used map[string]struct{}, tries int) (string, kbbi.LookupResult, bool) {
	// Phase 1: morphological suffix guessing.
	for _, sfx := range botSuffixes {
		cand := prefix + sfx
		if formsUsed(used, cand, "") {
			continue
		}
		lr, err := e.dict.Lookup(ctx, cand)
		if err != nil {
			log.Printf("[wordchain] bot lookup %q failed: %v", cand, err)
			continue
		}
		if lr.Valid && !formsUsed(used, cand, lr.Lemma) {
			return cand, lr, true
		}
	}

	// Phase 2: random probing for rare prefixes no suffix anticipates.
	for i := 0; i < tries; i++ {
		if ctx.Err() != nil {
			break
		}
		rw, err := e.dict.Random(ctx)
		if err != nil {
			log.Printf("[wordchain] bot random probe failed: %v", err)
			continue
		}
		clean := normalize(rw.Word)
		if !strings.HasPrefix(clean, prefix) || len(clean) <= len(prefix) {
			continue
		}
		if formsUsed(used, rw.Word, "") {
			continue
		}
		// A word served by the dictionary itself needs no second lookup.
		return rw.Word, kbbi.LookupResult{Valid: true, Lemma: rw.Word, Points: rw.Points}, true
	}

	return "", kbbi.LookupResult{}, false
}

func formsUsed(used map[string]struct{}, raw, lemma string) bool {
	for _, f := range answerForms(raw, lemma) {
		if _, hit := used[f]; hit {
			return true
		}
	}
	return false
}
