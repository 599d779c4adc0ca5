package wordchain

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Component custom IDs. wc:<action>
const (
	cidJoin   = "wc:join"
	cidLeave  = "wc:leave"
	cidStart  = "wc:start"
	cidExit   = "wc:exit"
	cidGiveUp = "wc:giveup"
	cidRoll   = "wc:roll"
	cidDiff   = "wc:diff"
	cidTime   = "wc:time"
	cidRolls  = "wc:rolls"
	cidBot    = "wc:bot"
)

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := ""
	if s.State != nil && s.State.User != nil {
		appID = s.State.User.ID
	}
	if appID == "" {
		log.Println("[wordchain] cannot register commands: missing application ID")
		return
	}

	guildID := strings.TrimSpace(os.Getenv("GUILD_ID")) // optional, like the other modules

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "sambungkata",
			Description: "Open a word-chain lobby in this channel",
		},
		{
			Name:        "sambungkick",
			Description: "Kick a player from the word-chain lobby (lobby master only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player",
					Description: "Player to kick",
					Required:    true,
				},
			},
		},
		{
			Name:        "sambungban",
			Description: "Ban a player from the word-chain lobby (lobby master only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player",
					Description: "Player to ban",
					Required:    true,
				},
			},
		},
		{
			Name:        "sambungstats",
			Description: "Word-chain all-time leaderboard",
		},
	}

	for _, c := range cmds {
		if _, err := s.ApplicationCommandCreate(appID, guildID, c); err != nil {
			log.Printf("[wordchain] command create failed (%s): %v", c.Name, err)
			return
		}
	}
	log.Println("[wordchain] registered /sambungkata /sambungkick /sambungban /sambungstats")
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case "sambungkata":
			m.handleCreate(s, i)
		case "sambungkick":
			m.handleKickBan(s, i, false)
		case "sambungban":
			m.handleKickBan(s, i, true)
		case "sambungstats":
			m.handleStats(s, i)
		}

	case discordgo.InteractionMessageComponent:
		cid := i.MessageComponentData().CustomID
		if !strings.HasPrefix(cid, "wc:") {
			return
		}
		m.handleComponent(s, i, cid)
	}
}

// ───────────────── slash commands ─────────────────

func (m *Module) handleCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	if userID == "" {
		respondEphemeral(s, i, "Could not determine user.")
		return
	}

	res := m.engine.Create(i.ChannelID, i.GuildID, userID, interactionDisplayName(i), m.defaultSettings())
	if !res.OK {
		respondEphemeral(s, i, res.Message)
		return
	}

	view, _ := m.engine.Game(i.ChannelID)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{buildLobbyEmbed(view)},
			Components: lobbyComponents(view),
		},
	})
	if err != nil {
		log.Printf("[wordchain] lobby respond failed: %v", err)
		return
	}
	if msg, err := s.InteractionResponse(i.Interaction); err == nil && msg != nil {
		m.engine.SetMessageID(i.ChannelID, msg.ID)
	}
}

func (m *Module) handleKickBan(s *discordgo.Session, i *discordgo.InteractionCreate, ban bool) {
	userID := interactionUserID(i)
	data := i.ApplicationCommandData()

	targetID := ""
	for _, opt := range data.Options {
		if opt != nil && opt.Name == "player" {
			if u := opt.UserValue(nil); u != nil {
				targetID = u.ID
			}
		}
	}
	if targetID == "" {
		respondEphemeral(s, i, "Could not determine the target player.")
		return
	}

	var res Result
	if ban {
		res = m.engine.Ban(i.ChannelID, userID, targetID)
	} else {
		res = m.engine.Kick(i.ChannelID, userID, targetID)
	}
	respondEphemeral(s, i, res.Message)
	if res.OK {
		m.refreshLobbyMessage(s, i.ChannelID)
	}
}

func (m *Module) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if m.database == nil {
		respondEphemeral(s, i, "Stats are not available.")
		return
	}

	rows, err := m.database.Query(
		`SELECT user_id, wins, games, points
		 FROM wordchain_stats
		 ORDER BY wins DESC, points DESC
		 LIMIT 10;`,
	)
	if err != nil {
		respondEphemeral(s, i, "DB error reading word-chain stats.")
		return
	}
	defer rows.Close()

	var b strings.Builder
	rank := 0
	for rows.Next() {
		var userID string
		var wins, games, points int64
		if err := rows.Scan(&userID, &wins, &games, &points); err != nil {
			respondEphemeral(s, i, "DB error reading word-chain stats.")
			return
		}
		rank++
		fmt.Fprintf(&b, "**%d.** <@%s> — %d wins / %d games, %d pts\n", rank, userID, wins, games, points)
	}
	if err := rows.Err(); err != nil {
		respondEphemeral(s, i, "DB error reading word-chain stats.")
		return
	}
	if rank == 0 {
		respondEphemeral(s, i, "Nobody has played yet.")
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Sambung Kata — Leaderboard",
				Color:       0x2ECC71,
				Description: b.String(),
			}},
		},
	})
}

// ───────────────── components ─────────────────

func (m *Module) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate, cid string) {
	userID := interactionUserID(i)
	if userID == "" {
		respondEphemeral(s, i, "Could not determine user.")
		return
	}

	switch cid {
	case cidJoin:
		res := m.engine.Join(i.ChannelID, userID, interactionDisplayName(i))
		m.ackAndRefresh(s, i, res.OK, res.Message)

	case cidLeave:
		res := m.engine.GiveUp(i.ChannelID, userID)
		m.ackAndRefresh(s, i, res.OK, res.Message)

	case cidExit:
		res := m.engine.Exit(i.ChannelID, userID)
		if !res.OK {
			respondEphemeral(s, i, res.Message)
			return
		}
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{{
					Title:       "Sambung Kata",
					Color:       0xE74C3C,
					Description: "Lobby closed by the lobby master.",
				}},
				Components: []discordgo.MessageComponent{},
			},
		})

	case cidStart:
		m.handleStart(s, i, userID)

	case cidGiveUp:
		res := m.engine.GiveUp(i.ChannelID, userID)
		if !res.OK {
			respondEphemeral(s, i, res.Message)
			return
		}
		respondEphemeral(s, i, "You gave up.")
		_, _ = s.ChannelMessageSend(i.ChannelID, res.Message)
		m.afterTurn(s, i.ChannelID, res)

	case cidRoll:
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		res, err := m.engine.Roll(ctx, i.ChannelID, userID)
		if err != nil {
			log.Printf("[wordchain] roll error: %v", err)
			respondEphemeral(s, i, "Could not reach the dictionary service. Try again.")
			return
		}
		if !res.OK {
			respondEphemeral(s, i, res.Message)
			return
		}
		// The roll does not resolve the turn, so the timer keeps running.
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{buildPromptEmbed(res, "🎲 New word rolled!")},
			},
		})

	case cidDiff, cidTime, cidRolls:
		m.handleSettingSelect(s, i, cid, userID)

	case cidBot:
		view, found := m.engine.Game(i.ChannelID)
		if !found {
			respondEphemeral(s, i, "No game lobby in this channel.")
			return
		}
		toggled := !view.Settings.BotOpponent
		res := m.engine.UpdateSettings(i.ChannelID, userID, SettingsPatch{BotOpponent: &toggled})
		m.ackAndRefresh(s, i, res.OK, res.Message)
	}
}

func (m *Module) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate, userID string) {
	// Defer: the opening word comes from the network.
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := m.engine.Start(ctx, i.ChannelID, userID)
	if err != nil {
		log.Printf("[wordchain] start error: %v", err)
		_, _ = s.ChannelMessageSend(i.ChannelID, "Could not reach the dictionary service. Try starting again.")
		return
	}
	if !res.OK {
		_, _ = s.ChannelMessageSend(i.ChannelID, res.Message)
		return
	}

	m.afterTurn(s, i.ChannelID, res)
}

func (m *Module) handleSettingSelect(s *discordgo.Session, i *discordgo.InteractionCreate, cid, userID string) {
	vals := i.MessageComponentData().Values
	if len(vals) != 1 {
		respondEphemeral(s, i, "Pick exactly one value.")
		return
	}

	var patch SettingsPatch
	switch cid {
	case cidDiff:
		d := Difficulty(vals[0])
		patch.Difficulty = &d
	case cidTime:
		n, err := strconv.Atoi(vals[0])
		if err != nil || n <= 0 {
			respondEphemeral(s, i, "Invalid time limit.")
			return
		}
		patch.TurnSeconds = &n
	case cidRolls:
		n, err := strconv.Atoi(vals[0])
		if err != nil || n < 0 {
			respondEphemeral(s, i, "Invalid roll limit.")
			return
		}
		patch.MaxRolls = &n
	}

	res := m.engine.UpdateSettings(i.ChannelID, userID, patch)
	m.ackAndRefresh(s, i, res.OK, res.Message)
}

// ackAndRefresh updates the lobby embed in place on success, or explains
// the failure ephemerally.
func (m *Module) ackAndRefresh(s *discordgo.Session, i *discordgo.InteractionCreate, success bool, msg string) {
	if !success {
		respondEphemeral(s, i, msg)
		return
	}

	view, found := m.engine.Game(i.ChannelID)
	if !found {
		// Session dissolved (e.g. master left). Strip the components.
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{{
					Title:       "Sambung Kata",
					Color:       0xE74C3C,
					Description: msg,
				}},
				Components: []discordgo.MessageComponent{},
			},
		})
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{buildLobbyEmbed(view)},
			Components: lobbyComponents(view),
		},
	})
}

func (m *Module) refreshLobbyMessage(s *discordgo.Session, channelID string) {
	view, found := m.engine.Game(channelID)
	if !found || view.MessageID == "" {
		return
	}
	embed := buildLobbyEmbed(view)
	comps := lobbyComponents(view)
	_, _ = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         view.MessageID,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &comps,
	})
}

// ───────────────── rendering ─────────────────

func buildLobbyEmbed(view SessionView) *discordgo.MessageEmbed {
	var players strings.Builder
	for n, p := range view.Players {
		crown := ""
		if p.UserID == view.MasterID {
			crown = " 👑"
		}
		fmt.Fprintf(&players, "%d. %s%s\n", n+1, p.DisplayName, crown)
	}
	if players.Len() == 0 {
		players.WriteString("*nobody yet*")
	}

	rolls := strconv.Itoa(view.Settings.MaxRolls)
	if view.Settings.MaxRolls == 0 {
		rolls = "Unlimited"
	}
	botState := "Off"
	if view.Settings.BotOpponent {
		botState = "On"
	}

	return &discordgo.MessageEmbed{
		Title: "Sambung Kata — Lobby",
		Color: 0x5865F2,
		Description: "Chain words! Every answer must start with the tail of the " +
			"previous word. First to 100 points wins.",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Players", Value: players.String()},
			{
				Name: "Settings",
				Value: fmt.Sprintf(
					"Difficulty: **%s**\nTime limit: **%ds**\nRolls: **%s**\nBot opponent: **%s**",
					view.Settings.Difficulty, view.Settings.TurnSeconds, rolls, botState,
				),
			},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func lobbyComponents(view SessionView) []discordgo.MessageComponent {
	diffOpts := make([]discordgo.SelectMenuOption, 0, 3)
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		diffOpts = append(diffOpts, discordgo.SelectMenuOption{
			Label:   string(d),
			Value:   string(d),
			Default: view.Settings.Difficulty == d,
		})
	}

	timeOpts := make([]discordgo.SelectMenuOption, 0, 4)
	for _, sec := range []int{15, 30, 45, 60} {
		timeOpts = append(timeOpts, discordgo.SelectMenuOption{
			Label:   fmt.Sprintf("%d seconds", sec),
			Value:   strconv.Itoa(sec),
			Default: view.Settings.TurnSeconds == sec,
		})
	}

	rollOpts := []discordgo.SelectMenuOption{
		{Label: "No rolls", Value: "0"},
		{Label: "1 roll", Value: "1", Default: view.Settings.MaxRolls == 1},
		{Label: "3 rolls", Value: "3", Default: view.Settings.MaxRolls == 3},
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Join", Style: discordgo.SuccessButton, CustomID: cidJoin},
			discordgo.Button{Label: "Leave", Style: discordgo.SecondaryButton, CustomID: cidLeave},
			discordgo.Button{Label: "Start", Style: discordgo.PrimaryButton, CustomID: cidStart},
			discordgo.Button{Label: "Close", Style: discordgo.DangerButton, CustomID: cidExit},
			discordgo.Button{Label: "Bot: toggle", Style: discordgo.SecondaryButton, CustomID: cidBot},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{CustomID: cidDiff, Placeholder: "Difficulty", Options: diffOpts},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{CustomID: cidTime, Placeholder: "Time limit", Options: timeOpts},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{CustomID: cidRolls, Placeholder: "Rolls per player", Options: rollOpts},
		}},
	}
}

// sendTurnEmbed announces whose turn it is and which prefix they must chain.
func (m *Module) sendTurnEmbed(s *discordgo.Session, channelID string, res TurnResult) {
	embed := buildPromptEmbed(res, "")
	msg, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Give up", Style: discordgo.DangerButton, CustomID: cidGiveUp},
				discordgo.Button{Label: "Roll new word", Style: discordgo.SecondaryButton, CustomID: cidRoll},
			}},
		},
	})
	if err == nil && msg != nil {
		m.engine.SetMessageID(channelID, msg.ID)
	}
}

func buildPromptEmbed(res TurnResult, title string) *discordgo.MessageEmbed {
	if title == "" {
		title = "Sambung Kata"
	}
	turn := ""
	if res.Next != nil {
		if res.Next.IsBot {
			turn = fmt.Sprintf("🤖 **%s** is thinking...", res.Next.DisplayName)
		} else {
			turn = fmt.Sprintf("<@%s>, you're up!", res.Next.UserID)
		}
	}
	return &discordgo.MessageEmbed{
		Title: title,
		Color: 0xF1C40F,
		Description: fmt.Sprintf(
			"%s\n\nYour word must start with **%s** (worth ~%d pts).\nType it right here in the channel.",
			turn, res.Prompt.Display, res.Prompt.Points,
		),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func buildFinalEmbed(res TurnResult) *discordgo.MessageEmbed {
	var b strings.Builder
	for n, p := range res.Standings {
		medal := "▫️"
		switch n {
		case 0:
			medal = "🥇"
		case 1:
			medal = "🥈"
		case 2:
			medal = "🥉"
		}
		fmt.Fprintf(&b, "%s **%s** — %d pts\n", medal, p.DisplayName, p.Points)
	}

	title := "Game over — no winner"
	if res.Winner != nil {
		title = fmt.Sprintf("🏆 %s wins!", res.Winner.DisplayName)
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Color:       0x2ECC71,
		Description: b.String(),
		Footer:      &discordgo.MessageEmbedFooter{Text: res.EndReason},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

// ───────────────── shared interaction helpers ─────────────────

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

func interactionDisplayName(i *discordgo.InteractionCreate) string {
	if i == nil {
		return "Unknown"
	}
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return i.Member.User.Username
		}
	}
	if i.User != nil {
		return i.User.Username
	}
	return "Unknown"
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
