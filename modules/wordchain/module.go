package wordchain

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KataNusa/NusaBot/internal/db"
	"github.com/KataNusa/NusaBot/internal/kbbi"
)

// Rewarder pays out coins for a won game. The economy module implements it.
type Rewarder interface {
	Award(userID, username string, coins int64) error
}

const winCoins = 50

type Module struct {
	database *sql.DB
	dict     kbbi.Client
	rewards  Rewarder

	store  *Store
	engine *Engine

	stop chan struct{}
}

func New(database *sql.DB, dict kbbi.Client, rewards Rewarder) *Module {
	store := NewStore()
	return &Module{
		database: database,
		dict:     dict,
		rewards:  rewards,
		store:    store,
		engine:   NewEngine(store, dict, DefaultConfig()),
		stop:     make(chan struct{}),
	}
}

func (m *Module) Name() string { return "wordchain" }

func (m *Module) Register(s *discordgo.Session) error {
	s.AddHandler(m.onReady)
	s.AddHandler(m.onInteractionCreate)

	// Answers are plain chat messages in the game channel.
	s.AddHandler(m.onMessageCreate)
	return nil
}

func (m *Module) Start(ctx context.Context, s *discordgo.Session) error {
	go func() {
		<-ctx.Done()
		close(m.stop)
	}()
	return nil
}

// defaultSettings reads dashboard-tunable defaults, falling back to the
// built-ins when the dashboard never touched them.
func (m *Module) defaultSettings() Settings {
	set := DefaultSettings()
	if m.database == nil {
		return set
	}
	set.TurnSeconds = db.GetSettingInt(m.database, db.SettingWordChainTurnSeconds, set.TurnSeconds)
	set.MaxRolls = db.GetSettingInt(m.database, db.SettingWordChainMaxRolls, set.MaxRolls)
	set.BotOpponent = db.GetSettingBool(m.database, db.SettingWordChainBotOpponent, set.BotOpponent)
	if v, found, err := db.GetSetting(m.database, db.SettingWordChainDifficulty); err == nil && found {
		switch Difficulty(v) {
		case DifficultyEasy, DifficultyMedium, DifficultyHard:
			set.Difficulty = Difficulty(v)
		}
	}
	return set
}

// ───────────────── answer handling ─────────────────

func (m *Module) onMessageCreate(s *discordgo.Session, e *discordgo.MessageCreate) {
	if e == nil || e.Message == nil || e.Author == nil || e.Author.Bot {
		return
	}

	view, found := m.engine.Game(e.ChannelID)
	if !found || view.Status != StatusPlaying {
		return
	}

	// Only single words count as answer attempts; chatter is left alone.
	content := strings.TrimSpace(e.Content)
	if content == "" || len(strings.Fields(content)) != 1 {
		return
	}
	if !m.isPlayer(view, e.Author.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := m.engine.SubmitAnswer(ctx, e.ChannelID, e.Author.ID, content)
	if err != nil {
		log.Printf("[wordchain] submit error: %v", err)
		_, _ = s.ChannelMessageSend(e.ChannelID, "Could not reach the dictionary service. Try again.")
		return
	}
	if !res.OK {
		_ = s.MessageReactionAdd(e.ChannelID, e.ID, "❌")
		// Only explain rejections addressed to the turn holder; off-turn
		// messages just get the reaction so the channel stays readable.
		if view.CurrentID == e.Author.ID {
			_, _ = s.ChannelMessageSend(e.ChannelID, res.Message)
		}
		return
	}

	_ = s.MessageReactionAdd(e.ChannelID, e.ID, "✅")
	m.afterTurn(s, e.ChannelID, res)
}

func (m *Module) isPlayer(view SessionView, userID string) bool {
	for _, p := range view.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ───────────────── turn flow ─────────────────

// afterTurn renders a resolved turn and lines up whatever comes next:
// final scoreboard on game end, otherwise the next prompt plus either a
// countdown (human) or a bot turn.
func (m *Module) afterTurn(s *discordgo.Session, channelID string, res TurnResult) {
	if res.GameEnded {
		m.finishGame(s, channelID, res)
		return
	}

	if res.Next == nil {
		return
	}

	m.sendTurnEmbed(s, channelID, res)

	if res.Next.IsBot {
		go m.runBotTurn(s, channelID)
		return
	}

	m.engine.StartTurnTimer(channelID, func(expired TurnResult) {
		select {
		case <-m.stop:
			return
		default:
		}
		_, _ = s.ChannelMessageSend(channelID, "⏰ "+expired.Message)
		m.afterTurn(s, channelID, expired)
	})
}

func (m *Module) runBotTurn(s *discordgo.Session, channelID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[wordchain] bot turn panicked: %v", r)
		}
	}()

	// A beat of delay so the bot doesn't answer inhumanly fast.
	time.Sleep(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res := m.engine.TakeBotTurn(ctx, channelID)
	if !res.OK {
		log.Printf("[wordchain] bot turn skipped: %s", res.Message)
		return
	}
	_, _ = s.ChannelMessageSend(channelID, "🤖 "+res.Message)
	m.afterTurn(s, channelID, res)
}

func (m *Module) finishGame(s *discordgo.Session, channelID string, res TurnResult) {
	embed := buildFinalEmbed(res)
	_, _ = s.ChannelMessageSendEmbed(channelID, embed)

	m.persistStats(res)

	if res.Winner != nil && !res.Winner.IsBot && m.rewards != nil {
		if err := m.rewards.Award(res.Winner.UserID, res.Winner.DisplayName, winCoins); err != nil {
			log.Printf("[wordchain] win payout failed: %v", err)
		}
	}
}

// persistStats writes lifetime games/wins/points. The session itself is
// memory-only; only these aggregates survive a restart.
func (m *Module) persistStats(res TurnResult) {
	if m.database == nil {
		return
	}
	now := time.Now().Unix()
	for _, p := range res.Standings {
		if p.IsBot {
			continue
		}
		wins := 0
		if res.Winner != nil && res.Winner.UserID == p.UserID {
			wins = 1
		}
		_, err := m.database.Exec(
			`INSERT INTO wordchain_stats (user_id, username, games, wins, points, last_played_at)
			 VALUES (?, ?, 1, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
				username = CASE WHEN excluded.username != '' THEN excluded.username ELSE wordchain_stats.username END,
				games = wordchain_stats.games + 1,
				wins = wordchain_stats.wins + excluded.wins,
				points = wordchain_stats.points + excluded.points,
				last_played_at = excluded.last_played_at;`,
			p.UserID, p.DisplayName, wins, p.Points, now,
		)
		if err != nil {
			log.Printf("[wordchain] stats upsert failed for %s: %v", p.UserID, err)
		}
	}
}
