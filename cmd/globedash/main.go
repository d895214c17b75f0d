package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/joho/godotenv"

	"github.com/slemay/globedash/internal/config"
	"github.com/slemay/globedash/internal/dashboard"
	"github.com/slemay/globedash/internal/logger"
	"github.com/slemay/globedash/internal/store"
	"github.com/slemay/globedash/internal/version"
	"github.com/slemay/globedash/internal/view"
)

var (
	configFile  = flag.String("config", "config.json", "Path to configuration file")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	genConfig   = flag.Bool("generate-config", false, "Generate a sample configuration file")
	viewQuery   = flag.String("view", "", "View settings as a query string, e.g. \"tickSpeed=500&renderLabels=1\"")
	setPassword = flag.String("set-password", "", "Store the upstream access credential and exit")
)

func main() {
	flag.Parse()

	// Optional .env for DASHBOARD_USERNAME / DASHBOARD_PASSWORD and friends.
	_ = godotenv.Load()

	if *genConfig {
		setupBasicLogger(*debug)
		generateSampleConfig()
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		setupBasicLogger(*debug)
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *setPassword != "" {
		setupBasicLogger(*debug)
		storeCredential(cfg, *setPassword)
		return
	}

	viewParams, err := url.ParseQuery(*viewQuery)
	if err != nil {
		setupBasicLogger(*debug)
		slog.Error("Invalid -view query string", "error", err)
		os.Exit(1)
	}
	settings := view.FromQuery(viewParams)
	if viewParams.Has("env") {
		// The view's env selection overrides the config file's.
		cfg.Environment = string(settings.Env)
		if err := cfg.Validate(); err != nil {
			setupBasicLogger(*debug)
			slog.Error("View settings select an unconfigured environment", "error", err)
			os.Exit(1)
		}
	}

	logSettings := cfg.Logger
	if *debug {
		logSettings.ConsoleLevel = "DEBUG"
		logSettings.FileLevel = "DEBUG"
	}

	log, err := logger.Setup(cfg.Environment, logSettings)
	if err != nil {
		setupBasicLogger(*debug)
		slog.Error("Failed to setup logger", "error", err)
		os.Exit(1)
	}
	defer log.Close()

	slog.Info("Globe Dashboard", "version", version.Version, "environment", cfg.Environment)

	d := dashboard.New(cfg, settings)
	if err := d.Run(); err != nil {
		slog.Error("Dashboard error", "error", err)
		os.Exit(1)
	}
}

func setupBasicLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s. Run with -generate-config to create a sample", path)
		}
		return nil, err
	}
	return cfg, nil
}

func storeCredential(cfg *config.Config, credential string) {
	db, err := store.Open(cfg.DataDir)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Set(store.KeyCredential, credential); err != nil {
		slog.Error("Failed to store credential", "error", err)
		os.Exit(1)
	}

	slog.Info("Credential stored", "dataDir", cfg.DataDir)
}

func generateSampleConfig() {
	cfg := config.DefaultConfig()
	cfg.Discord.Enabled = false
	cfg.Discord.BotToken = "your_bot_token"
	cfg.Discord.ChannelID = "your_channel_id"

	if err := config.SaveConfig("config.sample.json", &cfg); err != nil {
		slog.Error("Failed to save sample configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Sample configuration generated", "path", "config.sample.json")
	fmt.Println("\nSample configuration saved to config.sample.json")
	fmt.Println("Rename it to config.json and update with your settings")
}
