package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. FromEnv keeps main lean and
// defaults suit local development; production overrides via environment.
type Config struct {
	Addr string

	// DatabaseURL switches persistence from in-memory to postgres when set.
	DatabaseURL string

	Redis RedisConfig

	// KafkaBrokers enables the kafka notification sink when non-empty.
	KafkaBrokers []string
	NotifyTopic  string

	// AdvisorURL enables advisory enrichment of risk scores when set.
	AdvisorURL string

	// EnforcementInterval is the scheduler cadence between full sweeps.
	EnforcementInterval time.Duration
	// SchedulerAutostart starts the enforcement loop at boot.
	SchedulerAutostart bool
}

// RedisConfig configures the optional policy cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PolicyTTL    time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                getString("CUSTOS_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		AdvisorURL:          os.Getenv("ADVISOR_URL"),
		NotifyTopic:         getString("CUSTOS_NOTIFY_TOPIC", "custos.notifications"),
		EnforcementInterval: getDuration("ENFORCEMENT_INTERVAL", 6*time.Hour),
		SchedulerAutostart:  os.Getenv("SCHEDULER_AUTOSTART") != "false",
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PolicyTTL:    getDuration("POLICY_CACHE_TTL", 5*time.Minute),
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	return cfg
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
