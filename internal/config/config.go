package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

type Config struct {
	Port          int
	NatsURL       string
	NatsToken     string
	DatabaseURL   string
	LogLevel      string
	APIToken      string
	KafkaBrokers  string
	KafkaTopic    string
	SlackBotToken string
	SlackChannel  string
	CacheEntries  int

	Target       string
	ChunkSize    int
	SampleSize   int
	Completeness string
	BareBaseKeys bool
	TimeZone     string
}

// Load reads configuration from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:          envInt("TIMEWEAVE_PORT", 8760),
		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		APIToken:      envStr("TIMEWEAVE_API_TOKEN", ""),
		KafkaBrokers:  envStr("KAFKA_BROKERS", ""),
		KafkaTopic:    envStr("KAFKA_TOPIC", "timeweave.rows"),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_CHANNEL", ""),
		CacheEntries:  envInt("TIMEWEAVE_CACHE_ENTRIES", 256),

		Target:       envStr("TIMEWEAVE_TARGET", merge.DefaultTarget),
		ChunkSize:    envInt("TIMEWEAVE_CHUNK_SIZE", merge.DefaultChunkSize),
		SampleSize:   envInt("TIMEWEAVE_SAMPLE_SIZE", merge.DefaultMaxFrequencySampleSize),
		Completeness: envStr("TIMEWEAVE_COMPLETENESS", "strict"),
		BareBaseKeys: envBool("TIMEWEAVE_BARE_BASE_KEYS", false),
		TimeZone:     envStr("TIMEWEAVE_TZ", ""),
	}
}

// MergeOptions converts the merge-related settings. Unknown completeness
// policies and time zones fall back to the defaults.
func (c Config) MergeOptions() merge.Options {
	opts := merge.DefaultOptions()
	opts.Target = c.Target
	opts.ChunkSize = c.ChunkSize
	opts.MaxFrequencySampleSize = c.SampleSize
	opts.BareBaseKeys = c.BareBaseKeys
	if p, ok := merge.ParseCompleteness(c.Completeness); ok {
		opts.Completeness = p
	}
	if c.TimeZone != "" {
		if loc, err := time.LoadLocation(c.TimeZone); err == nil {
			opts.Location = loc
		}
	}
	return opts
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
