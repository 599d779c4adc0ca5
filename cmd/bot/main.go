package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/KataNusa/NusaBot/internal/bot"
	"github.com/KataNusa/NusaBot/internal/dashboard"
	"github.com/KataNusa/NusaBot/internal/db"
	"github.com/KataNusa/NusaBot/internal/kbbi"
	"github.com/KataNusa/NusaBot/modules/confession"
	"github.com/KataNusa/NusaBot/modules/economy"
	"github.com/KataNusa/NusaBot/modules/welcoming"
	"github.com/KataNusa/NusaBot/modules/wordchain"
)

func main() {
	cfg, err := bot.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Place DB next to executable
	exe, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}
	baseDir := filepath.Dir(exe)

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatal(err)
	}

	dbPath := filepath.Join(dataDir, "nusabot.db")
	log.Println("DB PATH:", dbPath)

	database, err := db.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	if err := db.Migrate(database.DB); err != nil {
		log.Fatal(err)
	}

	dict := kbbi.NewHTTPClient(cfg.KBBIBaseURL, cfg.KBBITimeout)

	eco := economy.New(database.DB)

	r, err := bot.NewRunner(cfg.Token, []bot.Module{
		// 🔗 Word-chain minigame (sambung kata)
		wordchain.New(database.DB, dict, eco),

		// 🪙 Aura coin economy + role shop
		eco,

		// 🤫 Anonymous confessions
		confession.New(database.DB, os.Getenv("CONFESSION_CHANNEL_ID")),

		// 👋 Welcoming + boost thanks
		welcoming.New(os.Getenv("WELCOME_CHANNEL_ID"), os.Getenv("BOOST_CHANNEL_ID")),
	})
	if err != nil {
		log.Fatal(err)
	}

	// Optional web dashboard for settings + stats.
	if cfg.DashboardAddr != "" {
		srv := dashboard.New(database.DB, cfg.DashboardSecret, cfg.DashboardPassword)
		go func() {
			if err := srv.Start(context.Background(), cfg.DashboardAddr); err != nil {
				log.Printf("dashboard stopped: %v", err)
			}
		}()
	}

	if err := r.Run(); err != nil {
		log.Fatal(err)
	}
}
