package economy

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/KataNusa/NusaBot/internal/db"
)

const (
	// Passive chat income. The cooldown keeps spam from paying.
	chatCoins    = 2
	chatCooldown = 60 * time.Second

	// A 🌟 reaction tips the message author.
	reactionEmoji = "🌟"
	reactionCoins = 5
)

type Module struct {
	database *sql.DB
}

func New(database *sql.DB) *Module {
	return &Module{database: database}
}

func (m *Module) Name() string { return "economy" }

func (m *Module) Register(s *discordgo.Session) error {
	s.AddHandler(m.onReady)
	s.AddHandler(m.onInteractionCreate)
	s.AddHandler(m.onMessageCreate)
	s.AddHandler(m.onMessageReactionAdd)
	return nil
}

func (m *Module) Start(ctx context.Context, s *discordgo.Session) error {
	return nil
}

func (m *Module) enabled() bool {
	return db.GetSettingBool(m.database, db.SettingEconomyEnabled, true)
}

// Award satisfies the word-chain payout hook.
func (m *Module) Award(userID, username string, coins int64) error {
	return m.addCoins(userID, username, coins)
}

// ───────────────── passive earning ─────────────────

func (m *Module) onMessageCreate(s *discordgo.Session, e *discordgo.MessageCreate) {
	if e == nil || e.Message == nil || e.Author == nil || e.Author.Bot {
		return
	}
	if strings.TrimSpace(e.Content) == "" {
		return
	}
	if !m.enabled() {
		return
	}

	name := e.Author.Username
	if e.Member != nil && e.Member.Nick != "" {
		name = e.Member.Nick
	}
	if _, err := m.earnWithCooldown(e.Author.ID, name, chatCoins, chatCooldown); err != nil {
		log.Printf("[economy] chat earn failed for %s: %v", e.Author.ID, err)
	}
}

func (m *Module) onMessageReactionAdd(s *discordgo.Session, e *discordgo.MessageReactionAdd) {
	if e == nil || e.Emoji.Name != reactionEmoji {
		return
	}
	if !m.enabled() {
		return
	}

	msg, err := s.ChannelMessage(e.ChannelID, e.MessageID)
	if err != nil || msg == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	// Tipping yourself doesn't count.
	if msg.Author.ID == e.UserID {
		return
	}

	if err := m.addCoins(msg.Author.ID, msg.Author.Username, reactionCoins); err != nil {
		log.Printf("[economy] reaction award failed for %s: %v", msg.Author.ID, err)
	}
}
