package economy

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	pageSize     = 10
	lbCustomBase = "eco" // eco:<ownerID>:<page>:<action>
)

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := ""
	if s.State != nil && s.State.User != nil {
		appID = s.State.User.ID
	}
	if appID == "" {
		log.Println("[economy] cannot register commands: missing application ID")
		return
	}

	guildID := strings.TrimSpace(os.Getenv("GUILD_ID")) // optional, single-guild mode

	for _, name := range []string{"aura", "shop", "buy", "auraboard"} {
		_ = deleteCommandsByName(s, appID, guildID, name)
		if guildID != "" {
			_ = deleteCommandsByName(s, appID, "", name)
		}
	}

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "aura",
			Description: "Check an aura coin balance",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Whose balance (default: yours)",
					Required:    false,
				},
			},
		},
		{
			Name:        "shop",
			Description: "Browse the role shop",
		},
		{
			Name:        "buy",
			Description: "Buy a shop item with aura coins",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "item",
					Description: "Item number from /shop",
					Required:    true,
				},
			},
		},
		{
			Name:        "auraboard",
			Description: "Show the aura coin leaderboard",
		},
	}

	for _, cmd := range cmds {
		if _, err := s.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			log.Printf("[economy] command create failed (%s): %v", cmd.Name, err)
			return
		}
	}

	log.Println("[economy] registered /aura, /shop, /buy and /auraboard")
}

func deleteCommandsByName(s *discordgo.Session, appID, guildID, name string) error {
	cmds, err := s.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		if c != nil && c.Name == name {
			_ = s.ApplicationCommandDelete(appID, guildID, c.ID)
		}
	}
	return nil
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "aura":
			m.handleBalance(s, i)
		case "shop":
			m.handleShop(s, i)
		case "buy":
			m.handleBuy(s, i)
		case "auraboard":
			m.handleLeaderboard(s, i)
		}

	case discordgo.InteractionMessageComponent:
		m.handleLeaderboardButtons(s, i)
	}
}

/* =========================
   BALANCE
   ========================= */

func (m *Module) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	target := interactionUserID(i)
	targetName := interactionDisplayName(i)
	for _, opt := range i.ApplicationCommandData().Options {
		if opt != nil && opt.Name == "user" {
			if u := opt.UserValue(nil); u != nil {
				target = u.ID
				targetName = u.Username
			}
		}
	}
	if target == "" {
		respondEphemeral(s, i, "Could not determine user.")
		return
	}

	coins, err := m.getBalance(target)
	if err != nil {
		respondEphemeral(s, i, "DB error reading the balance.")
		return
	}
	rank, _ := m.rankOf(target)

	desc := fmt.Sprintf("**%s** has **%d** aura coins 🪙", targetName, coins)
	if rank > 0 {
		desc += fmt.Sprintf("\nServer rank: **#%d**", rank)
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Aura Balance",
				Description: desc,
				Color:       0xF1C40F,
				Timestamp:   time.Now().Format(time.RFC3339),
			}},
		},
	})
}

/* =========================
   SHOP
   ========================= */

func (m *Module) handleShop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	items, err := m.listShopItems()
	if err != nil {
		respondEphemeral(s, i, "DB error reading the shop.")
		return
	}
	if len(items) == 0 {
		respondEphemeral(s, i, "The shop is empty right now.")
		return
	}

	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := fmt.Sprintf("**#%d** %s, **%d** 🪙", it.ID, it.Name, it.Price)
		if it.RoleID != "" {
			line += fmt.Sprintf(" (grants <@&%s>)", it.RoleID)
		}
		lines = append(lines, line)
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "Aura Shop 🛒",
				Description: strings.Join(lines, "\n") + "\n\nBuy with /buy item:<number>",
				Color:       0x9B59B6,
				Timestamp:   time.Now().Format(time.RFC3339),
			}},
		},
	})
}

func (m *Module) handleBuy(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUserID(i)
	if userID == "" {
		respondEphemeral(s, i, "Could not determine user.")
		return
	}

	var itemID int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt != nil && opt.Name == "item" {
			itemID = opt.IntValue()
		}
	}

	item, err := m.getShopItem(itemID)
	if err != nil {
		respondEphemeral(s, i, "DB error reading the shop.")
		return
	}
	if item == nil || !item.Enabled {
		respondEphemeral(s, i, "That item doesn't exist. Check /shop.")
		return
	}

	owned, err := m.hasPurchased(userID, item.ID)
	if err != nil {
		respondEphemeral(s, i, "DB error checking your purchases.")
		return
	}
	if owned {
		respondEphemeral(s, i, "You already own **"+item.Name+"**.")
		return
	}

	if err := m.spend(userID, item.Price); err != nil {
		if err == ErrInsufficientFunds {
			respondEphemeral(s, i, fmt.Sprintf("You need **%d** 🪙 for **%s**. Check /aura.", item.Price, item.Name))
			return
		}
		respondEphemeral(s, i, "DB error during the purchase.")
		return
	}

	// Role grant failures refund; the purchase only sticks once Discord
	// confirmed the role.
	if item.RoleID != "" && i.GuildID != "" {
		if err := s.GuildMemberRoleAdd(i.GuildID, userID, item.RoleID); err != nil {
			log.Printf("[economy] role grant failed for %s: %v", userID, err)
			_ = m.addCoins(userID, "", item.Price)
			respondEphemeral(s, i, "Could not grant the role; your coins were refunded.")
			return
		}
	}

	if err := m.recordPurchase(userID, item.ID, item.Price); err != nil {
		log.Printf("[economy] purchase record failed for %s: %v", userID, err)
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("🎉 <@%s> bought **%s** for **%d** 🪙!", userID, item.Name, item.Price),
		},
	})
}

/* =========================
   LEADERBOARD
   ========================= */

func (m *Module) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ownerID := interactionUserID(i)
	if ownerID == "" {
		respondEphemeral(s, i, "Could not determine user.")
		return
	}

	embed, comps, err := m.buildLeaderboardEmbed(ownerID, 0)
	if err != nil {
		respondEphemeral(s, i, "DB error reading the leaderboard.")
		return
	}
	if embed == nil {
		respondEphemeral(s, i, "Nobody has earned aura coins yet.")
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: comps,
		},
	})
}

func (m *Module) buildLeaderboardEmbed(ownerID string, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	rows, err := m.fetchLeaderboard()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	if page < 0 {
		page = 0
	}
	maxPage := (len(rows) - 1) / pageSize
	if page > maxPage {
		page = maxPage
	}

	start := page * pageSize
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		r := rows[i]
		name := strings.TrimSpace(r.Username)
		if name == "" {
			name = "<@" + r.UserID + ">"
		}
		lines = append(lines, fmt.Sprintf("**#%d** %s, **%d** 🪙", i+1, name, r.Coins))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "AURA LEADERBOARD 🪙",
		Description: strings.Join(lines, "\n") + fmt.Sprintf("\n\nPage %d/%d", page+1, maxPage+1),
		Color:       0xF1C40F,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	return embed, leaderboardButtons(ownerID, page, maxPage), nil
}

func leaderboardButtons(ownerID string, page, maxPage int) []discordgo.MessageComponent {
	prevDisabled := page <= 0
	nextDisabled := page >= maxPage

	custom := func(action string) string {
		return fmt.Sprintf("%s:%s:%d:%s", lbCustomBase, ownerID, page, action)
	}

	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "⏮", Style: discordgo.SecondaryButton, CustomID: custom("top"), Disabled: prevDisabled},
		discordgo.Button{Label: "◀", Style: discordgo.SecondaryButton, CustomID: custom("prev"), Disabled: prevDisabled},
		discordgo.Button{Label: "▶", Style: discordgo.SecondaryButton, CustomID: custom("next"), Disabled: nextDisabled},
		discordgo.Button{Label: "⏭", Style: discordgo.SecondaryButton, CustomID: custom("end"), Disabled: nextDisabled},
		discordgo.Button{Label: "🔄", Style: discordgo.PrimaryButton, CustomID: custom("refresh")},
	}}

	return []discordgo.MessageComponent{row}
}

func (m *Module) handleLeaderboardButtons(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Message == nil {
		return
	}

	parts := strings.Split(i.MessageComponentData().CustomID, ":")
	if len(parts) != 4 || parts[0] != lbCustomBase {
		return
	}

	ownerID := parts[1]
	pageStr := parts[2]
	action := parts[3]

	clicker := interactionUserID(i)
	if clicker == "" || clicker != ownerID {
		respondEphemeral(s, i, "Only the person who ran this leaderboard can use these buttons.")
		return
	}

	page, _ := strconv.Atoi(pageStr)
	if page < 0 {
		page = 0
	}

	switch action {
	case "top":
		page = 0
	case "prev":
		page--
	case "next":
		page++
	case "end":
		page = 1 << 20 // clamped to maxPage while building
	case "refresh":
		// keep page
	default:
		return
	}

	embed, comps, err := m.buildLeaderboardEmbed(ownerID, page)
	if err != nil || embed == nil {
		respondEphemeral(s, i, "DB error reading the leaderboard.")
		return
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: comps,
		},
	})
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

func interactionDisplayName(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
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
	return ""
}
