package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// WithdrawalMethod is one payout channel offered to users.
type WithdrawalMethod struct {
	Key    string
	Label  string
	Prompt string
}

type Config struct {
	BotToken string
	AdminID  int64
	Channel  string

	DBUser         string
	DBPassword     string
	DBName         string
	DBHost         string
	DBPort         string
	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisHost     string
	RedisPort     string
	RedisPassword string

	ReferralBonus      int64
	MilestoneThreshold int64
	MilestoneBonus     int64
	MinWithdrawal      int64
	Currency           string
	WithdrawalMethods  []WithdrawalMethod
	TopReferrersLimit  int

	SessionTTL           time.Duration
	SessionCapacity      int
	NotifyTimeout        time.Duration
	BroadcastConcurrency int

	PendingReminderAge      time.Duration
	PendingReminderInterval time.Duration

	LogLevel  string
	LogFormat string
}

const defaultWithdrawalMethods = "telebirr=Telebirr|Please enter your Telebirr phone number:;" +
	"cbe=CBE Bank|Please enter your CBE bank account number:;" +
	"usdt=USDT (TRC20)|Please enter your USDT (TRC20) wallet address:"

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using system environment variables")
	}

	cfg := &Config{
		BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		Channel:       getEnv("FORCE_JOIN_CHANNEL", ""),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "referral_bot"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		Currency:      getEnv("CURRENCY", "ETB"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.AdminID, err = getEnvInt64("ADMIN_TELEGRAM_ID", 0); err != nil {
		return nil, err
	}
	if cfg.DBMaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 20); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.ReferralBonus, err = getEnvInt64("REFERRAL_BONUS", 5); err != nil {
		return nil, err
	}
	if cfg.MilestoneThreshold, err = getEnvInt64("MILESTONE_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if cfg.MilestoneBonus, err = getEnvInt64("MILESTONE_BONUS", 10); err != nil {
		return nil, err
	}
	if cfg.MinWithdrawal, err = getEnvInt64("MIN_WITHDRAWAL", 100); err != nil {
		return nil, err
	}
	if cfg.TopReferrersLimit, err = getEnvInt("TOP_REFERRERS_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.SessionCapacity, err = getEnvInt("SESSION_CAPACITY", 10000); err != nil {
		return nil, err
	}
	if cfg.BroadcastConcurrency, err = getEnvInt("BROADCAST_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PendingReminderAge, err = getEnvDuration("PENDING_REMINDER_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PendingReminderInterval, err = getEnvDuration("PENDING_REMINDER_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.WithdrawalMethods, err = ParseWithdrawalMethods(getEnv("WITHDRAWAL_METHODS", defaultWithdrawalMethods)); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.AdminID == 0 {
		return fmt.Errorf("ADMIN_TELEGRAM_ID is required")
	}
	if c.ReferralBonus <= 0 {
		return fmt.Errorf("REFERRAL_BONUS must be positive, got %d", c.ReferralBonus)
	}
	if c.MilestoneThreshold <= 0 {
		return fmt.Errorf("MILESTONE_THRESHOLD must be positive, got %d", c.MilestoneThreshold)
	}
	if c.MilestoneBonus < 0 {
		return fmt.Errorf("MILESTONE_BONUS must not be negative, got %d", c.MilestoneBonus)
	}
	if c.MinWithdrawal <= 0 {
		return fmt.Errorf("MIN_WITHDRAWAL must be positive, got %d", c.MinWithdrawal)
	}
	if c.BroadcastConcurrency <= 0 {
		return fmt.Errorf("BROADCAST_CONCURRENCY must be positive, got %d", c.BroadcastConcurrency)
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be positive, got %d", c.SessionCapacity)
	}
	return nil
}

// Method looks up a configured withdrawal method by key.
func (c *Config) Method(key string) (WithdrawalMethod, bool) {
	for _, m := range c.WithdrawalMethods {
		if m.Key == key {
			return m, true
		}
	}
	return WithdrawalMethod{}, false
}

// ParseWithdrawalMethods parses "key=Label|Prompt;key2=Label2|Prompt2".
func ParseWithdrawalMethods(raw string) ([]WithdrawalMethod, error) {
	var methods []WithdrawalMethod
	seen := make(map[string]bool)

	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key, rest, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid withdrawal method %q: missing '='", entry)
		}
		label, prompt, ok := strings.Cut(rest, "|")
		if !ok {
			return nil, fmt.Errorf("invalid withdrawal method %q: missing '|'", entry)
		}

		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || strings.ContainsAny(key, ":_ ") {
			return nil, fmt.Errorf("invalid withdrawal method key %q", key)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate withdrawal method %q", key)
		}
		seen[key] = true

		methods = append(methods, WithdrawalMethod{
			Key:    key,
			Label:  strings.TrimSpace(label),
			Prompt: strings.TrimSpace(prompt),
		})
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("at least one withdrawal method is required")
	}
	return methods, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return parsed, nil
}
