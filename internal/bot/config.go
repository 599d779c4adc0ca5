package bot

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Token string

	// KBBI dictionary API used by the word-chain minigame.
	KBBIBaseURL string
	KBBITimeout time.Duration

	// Web dashboard (disabled when Addr is empty).
	DashboardAddr     string
	DashboardSecret   string
	DashboardPassword string
}

func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	kbbiURL := os.Getenv("KBBI_API_URL")
	if kbbiURL == "" {
		return Config{}, errors.New("KBBI_API_URL is required")
	}

	timeout := 10 * time.Second
	if v := os.Getenv("KBBI_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, errors.New("KBBI_TIMEOUT_SECONDS must be a positive integer")
		}
		timeout = time.Duration(n) * time.Second
	}

	cfg := Config{
		Token:             token,
		KBBIBaseURL:       kbbiURL,
		KBBITimeout:       timeout,
		DashboardAddr:     os.Getenv("DASHBOARD_ADDR"),
		DashboardSecret:   os.Getenv("DASHBOARD_SECRET"),
		DashboardPassword: os.Getenv("DASHBOARD_PASSWORD"),
	}

	if cfg.DashboardAddr != "" {
		if cfg.DashboardSecret == "" || cfg.DashboardPassword == "" {
			return Config{}, errors.New("DASHBOARD_SECRET and DASHBOARD_PASSWORD are required when DASHBOARD_ADDR is set")
		}
	}

	return cfg, nil
}
