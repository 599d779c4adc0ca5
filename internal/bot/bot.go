package bot

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/bwmarrin/discordgo"
)

type Module interface {
	Name() string
	Register(s *discordgo.Session) error
	Start(ctx context.Context, s *discordgo.Session) error
}

type Runner struct {
	Session *discordgo.Session
	Modules []Module

	cleanupOnce sync.Once
}

func NewRunner(token string, modules []Module) (*Runner, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	// GuildMembers is required for welcoming (GuildMemberAdd / boost updates).
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	return &Runner{Session: s, Modules: modules}, nil
}

func (r *Runner) Run() error {
	// Old GLOBAL slash commands show up as duplicates next to GUILD commands
	// in single-guild mode; wipe them once on Ready when GUILD_ID is set.
	r.Session.AddHandler(r.onReadyGlobalCommandCleanup)

	for _, m := range r.Modules {
		if err := m.Register(r.Session); err != nil {
			return err
		}
		log.Printf("registered module: %s", m.Name())
	}

	if err := r.Session.Open(); err != nil {
		return err
	}
	defer r.Session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, m := range r.Modules {
		if err := m.Start(ctx, r.Session); err != nil {
			return err
		}
		log.Printf("started module: %s", m.Name())
	}

	log.Println("NusaBot is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	return nil
}

func (r *Runner) onReadyGlobalCommandCleanup(s *discordgo.Session, _ *discordgo.Ready) {
	r.cleanupOnce.Do(func() {
		guildID := strings.TrimSpace(os.Getenv("GUILD_ID"))
		if guildID == "" {
			// Not in single-guild mode (or GUILD_ID not set). Do nothing.
			return
		}

		appID := ""
		if s.State != nil && s.State.User != nil {
			appID = s.State.User.ID
		}
		if appID == "" {
			log.Println("[bot] global command cleanup skipped: missing application ID")
			return
		}

		// Bulk overwrite GLOBAL commands with an empty list = delete all globals.
		// This prevents the Discord client from showing global+guild duplicates.
		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			log.Printf("[bot] global command cleanup failed: %v", err)
			return
		}

		log.Printf("[bot] cleared all GLOBAL slash commands (single-guild mode: %s)", guildID)
	})
}
