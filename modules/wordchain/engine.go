package wordchain

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KataNusa/NusaBot/internal/kbbi"
)

// Config holds the product-tuning knobs. The defaults mirror the values the
// game has always shipped with; they are parameters so tests (and the
// dashboard) can change them without touching game logic.
type Config struct {
	WinThreshold    int
	MinPromptPoints int
	MaxPromptPoints int
	PromptBonus     int // random extra 0..PromptBonus on top of prefix length
	MaxPlayers      int
	BotName         string
}

func DefaultConfig() Config {
	return Config{
		WinThreshold:    100,
		MinPromptPoints: 3,
		MaxPromptPoints: 10,
		PromptBonus:     2,
		MaxPlayers:      10,
		BotName:         "NusaBot",
	}
}

// Result is the uniform outcome shape every operation reports. Message is
// always safe to show to the user as-is.
type Result struct {
	OK      bool
	Message string
}

func fail(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

func ok(format string, args ...any) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

// TurnResult reports how a turn (or the whole game) resolved. All player
// values are snapshots; they stay valid after the session is gone.
type TurnResult struct {
	Result

	Player *Player // the acting player
	Word   string  // the accepted word, if any
	Points int     // points awarded for Word

	Prompt Prompt
	Next   *Player // whose turn it is now; nil when the game ended

	GameEnded bool
	Winner    *Player // nil on GameEnded means no winner
	EndReason string
	Standings []Player // final scores, highest first; set when GameEnded
}

func turnFail(format string, args ...any) TurnResult {
	return TurnResult{Result: fail(format, args...)}
}

// Engine owns all game-rule logic. A single mutex serializes every state
// mutation; oracle round-trips happen outside the lock and re-validate the
// turn on re-entry, so a timeout racing a slow lookup can never
// double-resolve a turn.
type Engine struct {
	store *Store
	dict  kbbi.Client
	cfg   Config

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(store *Store, dict kbbi.Client, cfg Config) *Engine {
	if cfg.WinThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		store: store,
		dict:  dict,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ───────────────── queries ─────────────────

// SessionView is a copy of session state safe to read outside the engine.
type SessionView struct {
	ChannelID     string
	Status        Status
	MasterID      string
	Settings      Settings
	Players       []Player
	Prompt        Prompt
	CurrentID     string
	MessageID     string
	TurnStartedAt time.Time
}

func (e *Engine) Game(channelID string) (SessionView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found {
		return SessionView{}, false
	}
	return e.viewLocked(s), true
}

func (e *Engine) viewLocked(s *Session) SessionView {
	v := SessionView{
		ChannelID:     s.ChannelID,
		Status:        s.Status,
		MasterID:      s.MasterID,
		Settings:      s.Settings,
		Prompt:        s.Prompt,
		MessageID:     s.MessageID,
		TurnStartedAt: s.turnStartedAt,
	}
	for _, p := range s.Players {
		v.Players = append(v.Players, *p)
	}
	if cur := s.currentPlayer(); cur != nil && s.Status == StatusPlaying {
		v.CurrentID = cur.UserID
	}
	return v
}

func (e *Engine) CurrentPlayer(channelID string) (Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found || s.Status != StatusPlaying {
		return Player{}, false
	}
	cur := s.currentPlayer()
	if cur == nil {
		return Player{}, false
	}
	return *cur, true
}

func (e *Engine) IsPlayerTurn(channelID, userID string) bool {
	cur, found := e.CurrentPlayer(channelID)
	return found && cur.UserID == userID
}

// SetMessageID remembers the message carrying the lobby/game embed.
func (e *Engine) SetMessageID(channelID, messageID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, found := e.store.Get(channelID); found {
		s.MessageID = messageID
	}
}

// ───────────────── lobby operations ─────────────────

// Create opens a lobby and seats the creator as lobby master.
func (e *Engine) Create(channelID, guildID, userID, displayName string, set Settings) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.store.Create(channelID, guildID, userID, set)
	if err != nil {
		return fail("There is already a word-chain game in this channel.")
	}
	s.Players = append(s.Players, &Player{UserID: userID, DisplayName: displayName})
	return ok("Lobby opened. Waiting for players.")
}

func (e *Engine) Join(channelID, userID, displayName string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found {
		return fail("No game lobby in this channel.")
	}
	if s.Status != StatusLobby {
		return fail("The game has already started.")
	}
	if s.isBanned(userID) {
		return fail("You are banned from this lobby.")
	}
	if s.player(userID) != nil {
		return fail("You already joined this lobby.")
	}
	if len(s.Players) >= e.cfg.MaxPlayers {
		return fail("The lobby is full (%d players max).", e.cfg.MaxPlayers)
	}

	p := &Player{UserID: userID, DisplayName: displayName}
	if userID == s.MasterID {
		s.Players = append([]*Player{p}, s.Players...)
	} else {
		s.Players = append(s.Players, p)
	}
	return ok("%s joined the lobby.", displayName)
}

func (e *Engine) Kick(channelID, requesterID, targetID string) Result {
	return e.removePlayer(channelID, requesterID, targetID, false)
}

// Ban kicks and additionally blocks the target from rejoining this session.
func (e *Engine) Ban(channelID, requesterID, targetID string) Result {
	return e.removePlayer(channelID, requesterID, targetID, true)
}

func (e *Engine) removePlayer(channelID, requesterID, targetID string, ban bool) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found {
		return fail("No game lobby in this channel.")
	}
	if s.Status != StatusLobby {
		return fail("Players can only be removed while the lobby is open.")
	}
	if requesterID != s.MasterID {
		return fail("Only the lobby master can do that.")
	}
	if targetID == requesterID {
		return fail("You cannot remove yourself. Use exit to close the lobby.")
	}

	target := s.player(targetID)
	if target == nil {
		return fail("That user is not in the lobby.")
	}

	for i, p := range s.Players {
		if p.UserID == targetID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			break
		}
	}
	if ban {
		s.Banned[targetID] = struct{}{}
		return ok("%s was banned from this lobby.", target.DisplayName)
	}
	return ok("%s was kicked from the lobby.", target.DisplayName)
}

// UpdateSettings merges the provided fields; only valid before the game starts.
func (e *Engine) UpdateSettings(channelID, requesterID string, patch SettingsPatch) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found {
		return fail("No game lobby in this channel.")
	}
	if s.Status != StatusLobby {
		return fail("Settings can only be changed while the lobby is open.")
	}
	if requesterID != s.MasterID {
		return fail("Only the lobby master can change settings.")
	}

	if patch.Difficulty != nil {
		s.Settings.Difficulty = *patch.Difficulty
	}
	if patch.TurnSeconds != nil && *patch.TurnSeconds > 0 {
		s.Settings.TurnSeconds = *patch.TurnSeconds
	}
	if patch.MaxRolls != nil && *patch.MaxRolls >= 0 {
		s.Settings.MaxRolls = *patch.MaxRolls
	}
	if patch.BotOpponent != nil {
		s.Settings.BotOpponent = *patch.BotOpponent
	}
	return ok("Settings updated.")
}

// Exit cancels the session outright, whatever its state.
func (e *Engine) Exit(channelID, requesterID string) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found {
		return fail("No game in this channel.")
	}
	if requesterID != s.MasterID {
		return fail("Only the lobby master can close the game.")
	}

	s.bumpTurn()
	s.Status = StatusEnded
	e.store.Remove(channelID)
	return ok("Game closed.")
}

// ───────────────── start ─────────────────

// Start moves the lobby into play. The opening prompt is derived from a
// random dictionary word with the same rule every later prompt uses, so
// prompt generation has a single code path.
func (e *Engine) Start(ctx context.Context, channelID, requesterID string) (TurnResult, error) {
	e.mu.Lock()
	s, found := e.store.Get(channelID)
	if !found {
		e.mu.Unlock()
		return turnFail("No game lobby in this channel."), nil
	}
	if s.Status != StatusLobby {
		e.mu.Unlock()
		return turnFail("The game has already started."), nil
	}
	if requesterID != s.MasterID {
		e.mu.Unlock()
		return turnFail("Only the lobby master can start the game."), nil
	}
	if len(s.Players) < 1 {
		e.mu.Unlock()
		return turnFail("At least one player is needed to start."), nil
	}
	needBot := len(s.Players) == 1 && !s.Players[0].IsBot && s.Settings.BotOpponent
	e.mu.Unlock()

	rw, err := e.dict.Random(ctx)
	if err != nil {
		// Status untouched; the lobby can retry.
		return TurnResult{}, fmt.Errorf("fetch opening word: %w", err)
	}
	prompt, okPrompt := e.derivePrompt(rw.Word)
	if !okPrompt {
		return TurnResult{}, fmt.Errorf("dictionary returned unusable word %q", rw.Word)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The lobby may have been closed while we were fetching.
	s, found = e.store.Get(channelID)
	if !found || s.Status != StatusLobby {
		return turnFail("The lobby is gone."), nil
	}

	if needBot && len(s.Players) == 1 {
		s.Players = append(s.Players, &Player{
			UserID:      BotUserID,
			DisplayName: e.cfg.BotName,
			IsBot:       true,
		})
	}

	s.Status = StatusPlaying
	s.TurnIndex = 0
	s.Prompt = prompt

	first := s.currentPlayer()
	firstCopy := *first
	return TurnResult{
		Result: ok("Game on!"),
		Prompt: prompt,
		Next:   &firstCopy,
	}, nil
}

// ───────────────── answering ─────────────────

// SubmitAnswer validates and applies one answer. Precondition order matters:
// turn ownership is checked before the dictionary so a bystander's guess can
// neither burn an oracle call nor mark a word used for the turn holder.
func (e *Engine) SubmitAnswer(ctx context.Context, channelID, userID, raw string) (TurnResult, error) {
	raw = strings.TrimSpace(raw)

	e.mu.Lock()
	s, found := e.store.Get(channelID)
	if !found {
		e.mu.Unlock()
		return turnFail("No game in this channel."), nil
	}
	if s.Status != StatusPlaying {
		e.mu.Unlock()
		return turnFail("The game is not in progress."), nil
	}
	p := s.player(userID)
	if p == nil {
		e.mu.Unlock()
		return turnFail("You are not part of this game."), nil
	}
	if p.GaveUp {
		e.mu.Unlock()
		return turnFail("You already gave up."), nil
	}
	if cur := s.currentPlayer(); cur == nil || cur.UserID != userID {
		e.mu.Unlock()
		return turnFail("It is not your turn."), nil
	}
	gen := s.turnGen
	e.mu.Unlock()

	lr, err := e.dict.Lookup(ctx, raw)
	if err != nil {
		return TurnResult{}, fmt.Errorf("dictionary lookup: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-validate after the oracle round-trip: the turn may have timed out
	// (or the game ended) while the lookup was in flight.
	s, found = e.store.Get(channelID)
	if !found || s.Status != StatusPlaying || s.turnGen != gen {
		return turnFail("That turn is already over."), nil
	}
	p = s.player(userID)
	if cur := s.currentPlayer(); p == nil || cur == nil || cur.UserID != userID {
		return turnFail("It is not your turn."), nil
	}

	if !lr.Valid {
		return turnFail("**%s** is not in the dictionary.", raw), nil
	}

	forms := answerForms(raw, lr.Lemma)
	for _, f := range forms {
		if _, used := s.Used[f]; used {
			return turnFail("**%s** was already used this game.", raw), nil
		}
	}

	clean := normalize(raw)
	if !strings.HasPrefix(clean, s.Prompt.Match) {
		return turnFail("Your word must start with **%s**.", s.Prompt.Display), nil
	}

	return e.accept(s, p, raw, lr), nil
}

// accept applies the shared bookkeeping for any accepted answer, human or
// bot: record used forms, award points, end at the win threshold, otherwise
// derive the next prompt and pass the turn.
func (e *Engine) accept(s *Session, p *Player, raw string, lr kbbi.LookupResult) TurnResult {
	s.bumpTurn()

	for _, f := range answerForms(raw, lr.Lemma) {
		s.Used[f] = struct{}{}
	}

	pts := lr.Points
	if pts <= 0 {
		pts = len(normalize(raw))
	}
	p.Points += pts

	actorCopy := *p

	if p.Points >= e.cfg.WinThreshold {
		standings := e.endSession(s)
		return TurnResult{
			Result:    ok("**%s** reached %d points and wins!", p.DisplayName, p.Points),
			Player:    &actorCopy,
			Word:      raw,
			Points:    pts,
			GameEnded: true,
			Winner:    &actorCopy,
			EndReason: "score threshold reached",
			Standings: standings,
		}
	}

	prompt, okPrompt := e.derivePrompt(raw)
	if okPrompt {
		s.Prompt = prompt
	}
	// An unusable tail cannot happen for an accepted answer (it passed the
	// prefix check, so its cleaned form is non-empty); keep the old prompt
	// as a harmless fallback.

	act := s.active()
	s.TurnIndex = (s.TurnIndex + 1) % len(act)
	next := *act[s.TurnIndex]

	return TurnResult{
		Result: ok("**%s** accepted, +%d points.", raw, pts),
		Player: &actorCopy,
		Word:   raw,
		Points: pts,
		Prompt: s.Prompt,
		Next:   &next,
	}
}

// ───────────────── give up / roll ─────────────────

// GiveUp concedes. In the lobby any member may leave pre-game; mid-game only
// the turn holder can concede (everyone else just waits their turn).
func (e *Engine) GiveUp(channelID, userID string) TurnResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, found := e.store.Get(channelID)
	if !found {
		return turnFail("No game in this channel.")
	}

	if s.Status == StatusLobby {
		p := s.player(userID)
		if p == nil {
			return turnFail("You are not in this lobby.")
		}
		if userID == s.MasterID {
			// Master leaving dissolves the lobby.
			s.bumpTurn()
			s.Status = StatusEnded
			e.store.Remove(channelID)
			return TurnResult{Result: ok("The lobby master left; lobby closed."), GameEnded: true, EndReason: "lobby closed"}
		}
		for i, pl := range s.Players {
			if pl.UserID == userID {
				s.Players = append(s.Players[:i], s.Players[i+1:]...)
				break
			}
		}
		return TurnResult{Result: ok("%s left the lobby.", p.DisplayName)}
	}

	if s.Status != StatusPlaying {
		return turnFail("The game is not in progress.")
	}
	p := s.currentPlayer()
	if p == nil || p.UserID != userID {
		return turnFail("You can only give up on your own turn.")
	}
	return e.resolveGiveUp(s, p, "gave up")
}

// resolveGiveUp retires a player and decides what happens next. It is the
// single resolution path shared by manual give-ups, timeouts and the bot
// conceding.
func (e *Engine) resolveGiveUp(s *Session, p *Player, reason string) TurnResult {
	s.bumpTurn()
	p.GaveUp = true
	actorCopy := *p

	act := s.active()
	switch len(act) {
	case 0:
		standings := e.endSession(s)
		return TurnResult{
			Result:    ok("Everyone gave up. No winner this time."),
			Player:    &actorCopy,
			GameEnded: true,
			EndReason: "everyone gave up",
			Standings: standings,
		}
	case 1:
		winner := *act[0]
		standings := e.endSession(s)
		return TurnResult{
			Result:    ok("**%s** is the last one standing and wins!", winner.DisplayName),
			Player:    &actorCopy,
			GameEnded: true,
			Winner:    &winner,
			EndReason: "all opponents " + reason,
			Standings: standings,
		}
	default:
		s.TurnIndex = s.TurnIndex % len(act)
		next := *act[s.TurnIndex]
		return TurnResult{
			Result: ok("**%s** %s. Turn passes on.", actorCopy.DisplayName, reason),
			Player: &actorCopy,
			Prompt: s.Prompt,
			Next:   &next,
		}
	}
}

// Roll replaces the prompt with a fresh one without consuming the turn.
// The turn timer keeps running; rolling buys a new prefix, not more time.
func (e *Engine) Roll(ctx context.Context, channelID, userID string) (TurnResult, error) {
	e.mu.Lock()
	s, found := e.store.Get(channelID)
	if !found {
		e.mu.Unlock()
		return turnFail("No game in this channel."), nil
	}
	if s.Status != StatusPlaying {
		e.mu.Unlock()
		return turnFail("The game is not in progress."), nil
	}
	p := s.currentPlayer()
	if p == nil || p.UserID != userID {
		e.mu.Unlock()
		return turnFail("Only the current player can roll a new word."), nil
	}
	if s.Settings.MaxRolls > 0 && s.Rolls[userID] >= s.Settings.MaxRolls {
		e.mu.Unlock()
		return turnFail("You have no rolls left (%d per game).", s.Settings.MaxRolls), nil
	}
	gen := s.turnGen
	e.mu.Unlock()

	rw, err := e.dict.Random(ctx)
	if err != nil {
		return TurnResult{}, fmt.Errorf("fetch new word: %w", err)
	}
	prompt, okPrompt := e.derivePrompt(rw.Word)
	if !okPrompt {
		return TurnResult{}, fmt.Errorf("dictionary returned unusable word %q", rw.Word)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, found = e.store.Get(channelID)
	if !found || s.Status != StatusPlaying || s.turnGen != gen {
		return turnFail("That turn is already over."), nil
	}
	if cur := s.currentPlayer(); cur == nil || cur.UserID != userID {
		return turnFail("Only the current player can roll a new word."), nil
	}

	s.Prompt = prompt
	s.Rolls[userID]++
	cur := *s.currentPlayer()
	return TurnResult{
		Result: ok("New word rolled."),
		Prompt: prompt,
		Next:   &cur,
	}, nil
}

// ───────────────── internals ─────────────────

// derivePrompt extracts the next required prefix from a word: the last 3
// letters when the cleaned word has at least 4, else the last 2 when it has
// at least 2, else the whole thing. Point value is clamp(len+rand, min, max).
func (e *Engine) derivePrompt(word string) (Prompt, bool) {
	clean := normalize(word)
	if clean == "" {
		return Prompt{}, false
	}

	n := len(clean)
	var tail string
	switch {
	case n >= 4:
		tail = clean[n-3:]
	case n >= 2:
		tail = clean[n-2:]
	default:
		tail = clean
	}

	pts := len(tail) + e.rng.Intn(e.cfg.PromptBonus+1)
	if pts < e.cfg.MinPromptPoints {
		pts = e.cfg.MinPromptPoints
	}
	if pts > e.cfg.MaxPromptPoints {
		pts = e.cfg.MaxPromptPoints
	}

	return Prompt{
		Display: strings.ToUpper(tail),
		Match:   tail,
		Points:  pts,
	}, true
}

// endSession finalizes and removes the session, returning the standings
// snapshot (highest score first, seat order on ties).
func (e *Engine) endSession(s *Session) []Player {
	s.bumpTurn()
	s.Status = StatusEnded
	e.store.Remove(s.ChannelID)

	standings := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		standings = append(standings, *p)
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Points > standings[j].Points
	})
	return standings
}
