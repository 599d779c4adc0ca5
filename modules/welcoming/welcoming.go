package welcoming

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Module greets new members and thanks server boosters. Channel IDs come
// from the environment; an empty ID disables that half of the module.
type Module struct {
	welcomeChannelID string
	boostChannelID   string
}

func New(welcomeChannelID, boostChannelID string) *Module {
	return &Module{
		welcomeChannelID: strings.TrimSpace(welcomeChannelID),
		boostChannelID:   strings.TrimSpace(boostChannelID),
	}
}

func (m *Module) Name() string { return "welcoming" }

func (m *Module) Register(s *discordgo.Session) error {
	s.AddHandler(m.onGuildMemberAdd)
	s.AddHandler(m.onGuildMemberUpdate)
	return nil
}

func (m *Module) Start(ctx context.Context, s *discordgo.Session) error { return nil }

func (m *Module) onGuildMemberAdd(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e == nil || e.User == nil || m.welcomeChannelID == "" {
		return
	}

	count := 0
	if g, err := s.State.Guild(e.GuildID); err == nil && g != nil {
		count = g.MemberCount
	}

	embed := &discordgo.MessageEmbed{
		Title: "👋 Welcome!",
		Description: "Welcome <@" + e.User.ID + "> to **Kata Nusa**!\n\n" +
			"React with 👋 to say hi",
		Color: 0x9B59B6,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Member #" + strconv.Itoa(count),
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	msg, err := s.ChannelMessageSendEmbed(m.welcomeChannelID, embed)
	if err != nil {
		log.Printf("[welcoming] welcome embed failed: %v", err)
		return
	}
	_ = s.MessageReactionAdd(m.welcomeChannelID, msg.ID, "👋")
}

// onGuildMemberUpdate thanks a member when their boost starts. Discord has
// no boost event; the premium_since transition on the member update is the
// signal.
func (m *Module) onGuildMemberUpdate(s *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	if e == nil || e.User == nil || m.boostChannelID == "" {
		return
	}
	if e.PremiumSince == nil {
		return
	}
	if e.BeforeUpdate != nil && e.BeforeUpdate.PremiumSince != nil {
		return // already boosting, nothing new
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🚀 Server Boost!",
		Description: "<@" + e.User.ID + "> just boosted the server. Terima kasih! 💜",
		Color:       0xF47FFF,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if _, err := s.ChannelMessageSendEmbed(m.boostChannelID, embed); err != nil {
		log.Printf("[welcoming] boost embed failed: %v", err)
	}
}
