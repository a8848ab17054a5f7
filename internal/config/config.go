package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"homework_bot/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken    string
	DatabaseURL string
	AdminIDs    []int64 // tg id админов через запятую в ADMIN_IDS
	SupportURL  string

	GeminiAPIKey      string
	GeminiOCRModel    string
	GeminiAnswerModel string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	HTTPPort string
	LogLevel string
	LogJSON  bool

	// Quota
	StartCredits  int64
	DailyRefill   int64
	ReferralBonus int64

	BroadcastPacing time.Duration

	// DigestAt is the UTC time of the daily admin digest, nil when disabled
	DigestAt *DigestTime
}

// DigestTime is an hour:minute pair in UTC
type DigestTime struct {
	Hour   uint
	Minute uint
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		logger.Fatal("BOT_TOKEN is not set")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	cfg := &Config{
		BotToken:          botToken,
		DatabaseURL:       dbURL,
		AdminIDs:          ParseIDs(os.Getenv("ADMIN_IDS")),
		SupportURL:        envString("SUPPORT_URL", "https://t.me/reshebnik_gdz_ai_onegin"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiOCRModel:    envString("GEMINI_OCR_MODEL", "gemini-2.5-flash"),
		GeminiAnswerModel: envString("GEMINI_ANSWER_MODEL", "gemini-2.5-flash"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           int(envInt("REDIS_DB", 0)),
		HTTPPort:          envString("HTTP_PORT", "8080"),
		LogLevel:          envString("LOG_LEVEL", "info"),
		LogJSON:           os.Getenv("LOG_JSON") == "true",
		StartCredits:      envInt("START_CREDITS", 5),
		DailyRefill:       envInt("DAILY_REFILL", 2),
		ReferralBonus:     envInt("REFERRAL_BONUS", 5),
		BroadcastPacing:   time.Duration(envInt("BROADCAST_PACING_MS", 50)) * time.Millisecond,
	}

	if cfg.GeminiAPIKey == "" {
		logger.Fatal("GEMINI_API_KEY is not set")
	}

	if v := os.Getenv("DIGEST_AT"); v != "" {
		dt, err := ParseDigestTime(v)
		if err != nil {
			logger.Fatal("invalid DIGEST_AT", "value", v, "error", err)
		}
		cfg.DigestAt = dt
	}

	return cfg
}

// ParseIDs parses a comma separated list of telegram ids, skipping junk
func ParseIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseDigestTime parses "HH:MM"
func ParseDigestTime(s string) (*DigestTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || h > 23 {
		return nil, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || m > 59 {
		return nil, fmt.Errorf("bad minute in %q", s)
	}
	return &DigestTime{Hour: uint(h), Minute: uint(m)}, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
