package wordchain

import (
	"strings"
	"time"
)

// Status is a strict forward state machine: lobby -> playing -> ended.
type Status int

const (
	StatusLobby Status = iota
	StatusPlaying
	StatusEnded
)

func (st Status) String() string {
	switch st {
	case StatusLobby:
		return "lobby"
	case StatusPlaying:
		return "playing"
	case StatusEnded:
		return "ended"
	}
	return "unknown"
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// BotUserID is the reserved user id of the synthetic opponent. It can never
// collide with a Discord snowflake (those are numeric).
const BotUserID = "bot:wordchain"

type Player struct {
	UserID      string
	DisplayName string
	Points      int
	GaveUp      bool
	IsBot       bool
}

// Prompt is the required continuation: the next answer must start with Match.
// Match is 1-3 lowercase letters taken from the tail of the previous word.
type Prompt struct {
	Display string
	Match   string
	Points  int
}

type Settings struct {
	Difficulty  Difficulty
	TurnSeconds int
	MaxRolls    int // 0 = unlimited
	BotOpponent bool
}

func DefaultSettings() Settings {
	return Settings{
		Difficulty:  DifficultyMedium,
		TurnSeconds: 30,
		MaxRolls:    1,
		BotOpponent: true,
	}
}

// SettingsPatch merges into a session's settings; nil fields stay untouched.
type SettingsPatch struct {
	Difficulty  *Difficulty
	TurnSeconds *int
	MaxRolls    *int
	BotOpponent *bool
}

// Session is one word-chain game, scoped to a single channel. It is owned
// exclusively by the Store; all mutation happens under the engine mutex.
type Session struct {
	ChannelID string
	GuildID   string
	Status    Status
	MasterID  string
	Settings  Settings

	// Insertion-ordered; the lobby master is always first.
	Players []*Player

	// Index into the active (not-given-up) subset, modulo its length.
	TurnIndex int

	Prompt Prompt

	// Normalized forms of every accepted answer (surface + lemma). Only grows.
	Used map[string]struct{}

	Rolls  map[string]int
	Banned map[string]struct{}

	// Message the lobby/game embed lives on, for edits.
	MessageID string

	CreatedAt time.Time

	// turnGen identifies the current turn; every resolution bumps it so a
	// stale timer or an in-flight oracle round-trip can detect it lost.
	turnGen       int
	timer         *time.Timer
	turnStartedAt time.Time
}

func (s *Session) player(userID string) *Player {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// active returns the players still in turn rotation, in seat order.
func (s *Session) active() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.GaveUp {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) currentPlayer() *Player {
	act := s.active()
	if len(act) == 0 {
		return nil
	}
	return act[s.TurnIndex%len(act)]
}

func (s *Session) isBanned(userID string) bool {
	_, ok := s.Banned[userID]
	return ok
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// bumpTurn closes out the current turn: the timer is stopped first so a
// timeout can never double-resolve a turn that just resolved another way.
func (s *Session) bumpTurn() {
	s.stopTimer()
	s.turnGen++
}

// normalize reduces a word to its comparable form: lowercase a-z only.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// answerForms returns every normalized form under which an answer is
// recorded and checked for reuse: the surface form, the dictionary lemma,
// and the alphabetic-only cleaning of both.
func answerForms(raw, lemma string) []string {
	seen := make(map[string]struct{}, 4)
	out := make([]string, 0, 4)
	for _, f := range []string{
		strings.ToLower(strings.TrimSpace(raw)),
		normalize(raw),
		strings.ToLower(strings.TrimSpace(lemma)),
		normalize(lemma),
	} {
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
