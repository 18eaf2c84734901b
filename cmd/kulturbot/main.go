package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/kulturbot/ai"
	"github.com/hrygo/kulturbot/bot"
	"github.com/hrygo/kulturbot/content"
	"github.com/hrygo/kulturbot/content/extract"
	"github.com/hrygo/kulturbot/content/feed"
	"github.com/hrygo/kulturbot/internal/profile"
	"github.com/hrygo/kulturbot/internal/version"
	"github.com/hrygo/kulturbot/ledger"
	"github.com/hrygo/kulturbot/scheduler"
	"github.com/hrygo/kulturbot/server"
	"github.com/hrygo/kulturbot/store"
	"github.com/hrygo/kulturbot/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "kulturbot",
	Short: `A semantic-search assistant bot for a cultural venue. Answers questions about the venue's website and social feed using embeddings.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Systemd units carry their environment in the unit file.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.String(),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return run(instanceProfile)
	},
}

func run(instanceProfile *profile.Profile) error {
	ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
	defer stop()

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return fmt.Errorf("failed to create db driver: %w", err)
	}

	storeInstance := store.New(dbDriver, instanceProfile)
	defer storeInstance.Close()
	if err := storeInstance.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	if err := storeInstance.BootstrapOwner(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap owner account: %w", err)
	}

	provider, err := ai.NewProvider(ai.Config{
		APIKey:         instanceProfile.AIAPIKey,
		BaseURL:        instanceProfile.AIBaseURL,
		EmbeddingModel: instanceProfile.AIEmbeddingModel,
		ChatModel:      instanceProfile.AIChatModel,
		Dimensions:     instanceProfile.AIDimensions,
		Timeout:        instanceProfile.AITimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create ai provider: %w", err)
	}

	catalog := content.DefaultCatalog()
	if instanceProfile.CatalogPath != "" {
		catalog, err = content.LoadCatalog(instanceProfile.CatalogPath)
		if err != nil {
			return fmt.Errorf("failed to load section catalog: %w", err)
		}
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	extractor := extract.New(httpClient)

	var feedSource feed.Source
	if instanceProfile.FeedToken != "" && instanceProfile.FeedOwnerID != 0 {
		feedSource = feed.NewWallClient(feed.Config{
			BaseURL:     instanceProfile.FeedBaseURL,
			AccessToken: instanceProfile.FeedToken,
			OwnerID:     instanceProfile.FeedOwnerID,
			Count:       instanceProfile.FeedCount,
		}, httpClient)
	} else {
		slog.Info("feed source not configured, post search disabled")
	}

	usageLedger := ledger.New(storeInstance, instanceProfile.OwnerSecret)
	contentStore, err := content.NewStore(catalog, extractor, feedSource, provider, usageLedger)
	if err != nil {
		return fmt.Errorf("failed to create content store: %w", err)
	}

	// First refresh runs before the bot accepts traffic, so every snapshot
	// a handler sees is populated. A failure here is logged, not fatal: the
	// scheduler retries on its own cadence.
	if err := contentStore.Refresh(ctx); err != nil {
		slog.Error("initial content refresh failed", "error", err)
	}

	sessions := bot.NewSessionStore(
		time.Duration(instanceProfile.SessionIdleMin)*time.Minute,
		instanceProfile.RateLimitMax,
		time.Duration(instanceProfile.RateLimitWindowSec)*time.Second,
	)
	defer sessions.Close()

	engine := bot.NewEngine(bot.Config{
		OwnerSecret:     instanceProfile.OwnerSecret,
		CompressQueries: instanceProfile.CompressQueries,
		MaxSymbols:      instanceProfile.RequestMaxSymbols,
	}, provider, contentStore, usageLedger, storeInstance, sessions, slog.Default())

	telegramBot, err := bot.NewTelegramBot(instanceProfile.BotToken, engine, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}

	refreshScheduler, err := scheduler.New(instanceProfile.RefreshSchedule, contentStore, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create refresh scheduler: %w", err)
	}

	httpServer := server.New(
		fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port),
		usageLedger, contentStore, slog.Default(),
	)

	printGreetings(instanceProfile)

	errCh := make(chan error, 3)
	go func() { errCh <- telegramBot.Run(ctx) }()
	go func() { errCh <- refreshScheduler.Run(ctx) }()
	go func() { errCh <- httpServer.Start(ctx) }()

	// The first terminal error wins; context cancellation during shutdown
	// is the normal exit path.
	err = <-errCh
	shuttingDown := ctx.Err() != nil
	stop()
	if err != nil && !shuttingDown {
		return err
	}
	slog.Info("shutting down")
	return nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8082)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of http server")
	rootCmd.PersistentFlags().Int("port", 8082, "port of http server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("kulturbot")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Kulturbot %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("HTTP server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("HTTP server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
