package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Server
	Mode string // dev, prod
	Addr string
	Port int
	Data string // data directory

	// Database
	Driver string // sqlite
	DSN    string

	// Telegram transport
	BotToken string

	// Privileged access
	OwnerSecret  string // access code promoting a session to owner
	WorkerSecret string // optional static worker code bootstrapped at startup

	// Provider (OpenAI-compatible)
	AIAPIKey         string
	AIBaseURL        string
	AIEmbeddingModel string
	AIChatModel      string
	AIDimensions     int // fixed embedding width
	AITimeout        int // request timeout in seconds

	// Conversation
	CompressQueries    bool // distill queries via completion before embedding
	RequestMaxSymbols  int  // default per-owner query length cap
	RateLimitMax       int  // accepted messages per window per session
	RateLimitWindowSec int
	SessionIdleMin     int // idle minutes before a session is evicted

	// Content refresh
	RefreshSchedule string // cron expression
	CatalogPath     string // optional YAML section catalog

	// Feed source
	FeedBaseURL string
	FeedToken   string
	FeedOwnerID int64
	FeedCount   int

	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.BotToken = getEnvOrDefault("KULTURBOT_TELEGRAM_TOKEN", p.BotToken)
	p.OwnerSecret = getEnvOrDefault("KULTURBOT_OWNER_SECRET", p.OwnerSecret)
	p.WorkerSecret = getEnvOrDefault("KULTURBOT_WORKER_SECRET", p.WorkerSecret)

	p.AIAPIKey = getEnvOrDefault("KULTURBOT_AI_API_KEY", "")
	p.AIBaseURL = getEnvOrDefault("KULTURBOT_AI_BASE_URL", "")
	p.AIEmbeddingModel = getEnvOrDefault("KULTURBOT_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.AIChatModel = getEnvOrDefault("KULTURBOT_AI_CHAT_MODEL", "gpt-4o-mini")
	p.AIDimensions = getEnvOrDefaultInt("KULTURBOT_AI_DIMENSIONS", 256)
	p.AITimeout = getEnvOrDefaultInt("KULTURBOT_AI_TIMEOUT_SECONDS", 120)

	p.CompressQueries = getEnvOrDefaultBool("KULTURBOT_COMPRESS_QUERIES", true)
	p.RequestMaxSymbols = getEnvOrDefaultInt("KULTURBOT_REQUEST_MAX_SYMBOLS", 110)
	p.RateLimitMax = getEnvOrDefaultInt("KULTURBOT_RATE_LIMIT_MAX", 10)
	p.RateLimitWindowSec = getEnvOrDefaultInt("KULTURBOT_RATE_LIMIT_WINDOW_SECONDS", 60)
	p.SessionIdleMin = getEnvOrDefaultInt("KULTURBOT_SESSION_IDLE_MINUTES", 30)

	p.RefreshSchedule = getEnvOrDefault("KULTURBOT_REFRESH_SCHEDULE", "0 4 * * *")
	p.CatalogPath = getEnvOrDefault("KULTURBOT_CATALOG_PATH", "")

	p.FeedBaseURL = getEnvOrDefault("KULTURBOT_FEED_BASE_URL", "")
	p.FeedToken = getEnvOrDefault("KULTURBOT_FEED_TOKEN", "")
	p.FeedCount = getEnvOrDefaultInt("KULTURBOT_FEED_COUNT", 20)
	if v := os.Getenv("KULTURBOT_FEED_OWNER_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.FeedOwnerID = id
		} else {
			slog.Warn("invalid KULTURBOT_FEED_OWNER_ID, feed disabled", "value", v)
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "kulturbot")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/kulturbot"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("kulturbot_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.OwnerSecret == "" {
		return errors.New("owner secret is required")
	}
	if p.BotToken == "" && p.Mode == "prod" {
		return errors.New("telegram bot token is required in prod mode")
	}
	if p.AIDimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}

	return nil
}
