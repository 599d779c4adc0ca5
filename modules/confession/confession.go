package confession

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const modalCustomID = "confess:modal"

// Module posts anonymous confessions. The public embed carries only a
// number; authorship lives in a private audit row keyed by a random token
// so moderators can act on abuse without the channel ever learning who
// wrote what.
type Module struct {
	database  *sql.DB
	channelID string
}

func New(database *sql.DB, channelID string) *Module {
	return &Module{database: database, channelID: strings.TrimSpace(channelID)}
}

func (m *Module) Name() string { return "confession" }

func (m *Module) Register(s *discordgo.Session) error {
	s.AddHandler(m.onReady)
	s.AddHandler(m.onInteractionCreate)
	return nil
}

func (m *Module) Start(ctx context.Context, s *discordgo.Session) error { return nil }

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if m.channelID == "" {
		log.Println("[confession] CONFESSION_CHANNEL_ID not set; module idle")
		return
	}

	appID := ""
	if s.State != nil && s.State.User != nil {
		appID = s.State.User.ID
	}
	if appID == "" {
		log.Println("[confession] cannot register commands: missing application ID")
		return
	}

	guildID := strings.TrimSpace(os.Getenv("GUILD_ID"))

	_, err := s.ApplicationCommandCreate(appID, guildID, &discordgo.ApplicationCommand{
		Name:        "confess",
		Description: "Send an anonymous confession",
	})
	if err != nil {
		log.Printf("[confession] command create failed: %v", err)
		return
	}
	log.Println("[confession] registered /confess")
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == "confess" {
			m.openModal(s, i)
		}
	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == modalCustomID {
			m.handleSubmit(s, i)
		}
	}
}

func (m *Module) openModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modalCustomID,
			Title:    "Anonymous Confession",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    "confess:text",
						Label:       "Your confession",
						Style:       discordgo.TextInputParagraph,
						Placeholder: "Nobody will see your name.",
						Required:    true,
						MinLength:   3,
						MaxLength:   2000,
					},
				}},
			},
		},
	})
}

func (m *Module) handleSubmit(s *discordgo.Session, i *discordgo.InteractionCreate) {
	authorID := interactionUserID(i)
	if authorID == "" {
		return
	}

	text := ""
	for _, row := range i.ModalSubmitData().Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, c := range ar.Components {
			if in, ok := c.(*discordgo.TextInput); ok && in.CustomID == "confess:text" {
				text = strings.TrimSpace(in.Value)
			}
		}
	}
	if text == "" {
		respondEphemeral(s, i, "Your confession was empty.")
		return
	}

	number, token, err := m.insertConfession(authorID)
	if err != nil {
		log.Printf("[confession] insert failed: %v", err)
		respondEphemeral(s, i, "Could not save your confession. Try again.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Confession #%d", number),
		Description: text,
		Color:       0x2C2F33,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Sent anonymously via /confess"},
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	msg, err := s.ChannelMessageSendEmbed(m.channelID, embed)
	if err != nil {
		log.Printf("[confession] post failed: %v", err)
		respondEphemeral(s, i, "Could not post your confession. Try again.")
		return
	}
	if err := m.setMessageID(number, msg.ID); err != nil {
		log.Printf("[confession] message id update failed: %v", err)
	}

	respondEphemeral(s, i, fmt.Sprintf("Posted as **Confession #%d**. Audit token: `%s`", number, token))
}

// insertConfession writes the audit row and returns the assigned number.
func (m *Module) insertConfession(authorID string) (int64, string, error) {
	token := uuid.NewString()
	res, err := m.database.Exec(
		`INSERT INTO confessions (audit_token, author_id, channel_id, created_at)
		 VALUES (?, ?, ?, ?);`,
		token, authorID, m.channelID, time.Now().Unix(),
	)
	if err != nil {
		return 0, "", err
	}
	number, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}
	return number, token, nil
}

func (m *Module) setMessageID(number int64, messageID string) error {
	_, err := m.database.Exec(
		`UPDATE confessions SET message_id = ? WHERE number = ?`,
		messageID, number,
	)
	return err
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
