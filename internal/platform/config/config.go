package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	DatabaseURL  string
	KafkaBrokers []string

	QuorumThreshold             int
	ReportReasonMinLength       int
	AnnouncementReasonMaxLength int
	AnnouncerID                 string

	JWTSecret             string
	MutationRatePerMinute int
	OutboxPollInterval    time.Duration

	EnableSwagger bool
	AutoMigrate   bool
}

// Load reads the process environment. A .env file in the working directory
// is applied first when present; real environment variables win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "tribunal"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		databaseURL = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	quorum, err := envInt("QUORUM_THRESHOLD", 3)
	if err != nil {
		return Config{}, err
	}
	minReason, err := envInt("REPORT_REASON_MIN_LENGTH", 10)
	if err != nil {
		return Config{}, err
	}
	maxReason, err := envInt("ANNOUNCEMENT_REASON_MAX_LENGTH", 200)
	if err != nil {
		return Config{}, err
	}
	rate, err := envInt("MUTATION_RATE_PER_MINUTE", 30)
	if err != nil {
		return Config{}, err
	}
	poll, err := envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}

	announcer := strings.TrimSpace(os.Getenv("MODERATION_ANNOUNCER_ID"))
	if announcer == "" {
		announcer = "system"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		DatabaseURL:  databaseURL,
		KafkaBrokers: brokers,

		QuorumThreshold:             quorum,
		ReportReasonMinLength:       minReason,
		AnnouncementReasonMaxLength: maxReason,
		AnnouncerID:                 announcer,

		JWTSecret:             os.Getenv("JWT_SECRET"),
		MutationRatePerMinute: rate,
		OutboxPollInterval:    poll,

		EnableSwagger: envBool("ENABLE_SWAGGER", true),
		AutoMigrate:   envBool("AUTO_MIGRATE", false),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return value, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", name, raw)
	}
	return value, nil
}
