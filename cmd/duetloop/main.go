package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/duetloop/duetloop/internal/api"
	"github.com/duetloop/duetloop/internal/dialogue"
	"github.com/duetloop/duetloop/internal/feed"
	"github.com/duetloop/duetloop/internal/genai"
	"github.com/duetloop/duetloop/internal/lockfile"
	"github.com/duetloop/duetloop/internal/models"
	"github.com/duetloop/duetloop/internal/util"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for DuetLoop state data
	DefaultStateDir = "/var/lib/duetloop"
	// DefaultDBFileName is the default SQLite feed-cache filename
	DefaultDBFileName = "duetloop.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Hold the state directory for the lifetime of the process so two
	// instances never share the same feed cache.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	// Build module options
	genaiOpts := buildGenAIOptions(flags)
	feedOpts := buildFeedOptions(flags)
	schedCfg := buildSchedulerConfig(flags)
	apiOpts := buildAPIOptions(flags)

	// Start the service
	slog.Info("Bootstrapping DuetLoop with configured modules")
	slog.Debug("Module options counts", "genai", len(genaiOpts), "feed", len(feedOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(genaiOpts, feedOpts, schedCfg, apiOpts); err != nil {
		slog.Error("DuetLoop failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("DuetLoop exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	OpenAIKey      string
	Model          string
	APIAddr        string
	FeedURL        string
	FeedCategory   string
	ContextTimeout time.Duration
	InitialSpeaker string
	Debug          bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	openaiKey      *string
	model          *string
	apiAddr        *string
	feedURL        *string
	feedCategory   *string
	contextTimeout *time.Duration
	initialSpeaker *string
	debug          *bool
}

// initializeLogger sets up structured logging. Interactive terminals get a
// colorized handler; everything else gets plain text for log shippers.
func initializeLogger() {
	level := parseLogLevel(os.Getenv("DUETLOOP_LOG_LEVEL"))

	var handler slog.Handler
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// parseLogLevel maps a level name to a slog level, defaulting to debug.
func parseLogLevel(name string) slog.Level {
	switch name {
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:       os.Getenv("DUETLOOP_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		Model:          os.Getenv("DUETLOOP_MODEL"),
		APIAddr:        os.Getenv("API_ADDR"),
		FeedURL:        os.Getenv("DUETLOOP_FEED_URL"),
		FeedCategory:   os.Getenv("DUETLOOP_FEED_CATEGORY"),
		ContextTimeout: util.ParseDurationEnv("DUETLOOP_CONTEXT_TIMEOUT", dialogue.DefaultContextTimeout),
		InitialSpeaker: os.Getenv("DUETLOOP_INITIAL_SPEAKER"),
		Debug:          util.ParseBoolEnv("DUETLOOP_DEBUG", false),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DUETLOOP_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("DUETLOOP_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DUETLOOP_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"DUETLOOP_MODEL", config.Model,
		"API_ADDR", config.APIAddr,
		"DUETLOOP_FEED_URL", config.FeedURL,
		"DUETLOOP_FEED_CATEGORY", config.FeedCategory,
		"DUETLOOP_CONTEXT_TIMEOUT", config.ContextTimeout,
		"DUETLOOP_INITIAL_SPEAKER", config.InitialSpeaker,
		"DUETLOOP_DEBUG", config.Debug)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for DuetLoop data (overrides $DUETLOOP_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN for the feed cache (overrides $DATABASE_URL)"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:          flag.String("model", config.Model, "generation model name (overrides $DUETLOOP_MODEL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		feedURL:        flag.String("feed-url", config.FeedURL, "feed listing base URL (overrides $DUETLOOP_FEED_URL)"),
		feedCategory:   flag.String("feed-category", config.FeedCategory, "feed category to read posts from (overrides $DUETLOOP_FEED_CATEGORY)"),
		contextTimeout: flag.Duration("context-timeout", config.ContextTimeout, "minimum time a feed post stays locked (overrides $DUETLOOP_CONTEXT_TIMEOUT)"),
		initialSpeaker: flag.String("initial-speaker", config.InitialSpeaker, "speaker that opens the conversation, A or B (overrides $DUETLOOP_INITIAL_SPEAKER)"),
		debug:          flag.Bool("debug", config.Debug, "persist generation request/response records for debugging (overrides $DUETLOOP_DEBUG)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"model", *flags.model,
		"apiAddr", *flags.apiAddr,
		"feedURL", *flags.feedURL,
		"feedCategory", *flags.feedCategory,
		"contextTimeout", *flags.contextTimeout,
		"initialSpeaker", *flags.initialSpeaker,
		"debug", *flags.debug)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", *flags.stateDir)
		return err
	}
	// The feed cache may point at a file outside the state directory.
	if feed.DetectDSNType(*flags.dbDSN) != "postgres" {
		dbDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating directory for file-based feed cache", "db_dir", dbDir)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			slog.Error("Failed to create feed cache directory", "error", err, "db_dir", dbDir)
			return err
		}
	}
	return nil
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	if *flags.debug {
		genaiOpts = append(genaiOpts, genai.WithDebugDir(*flags.stateDir))
		slog.Debug("Generation debug records enabled", "debug_dir", *flags.stateDir)
	}
	return genaiOpts
}

// buildFeedOptions constructs feed source configuration options
func buildFeedOptions(flags Flags) []feed.Option {
	var feedOpts []feed.Option
	if *flags.feedURL != "" {
		feedOpts = append(feedOpts, feed.WithBaseURL(*flags.feedURL))
	}
	if *flags.feedCategory != "" {
		feedOpts = append(feedOpts, feed.WithCategory(*flags.feedCategory))
	}
	if *flags.dbDSN != "" {
		slog.Debug("Configuring feed cache", "dsn_type", feed.DetectDSNType(*flags.dbDSN), "dsn_set", true)
		feedOpts = append(feedOpts, feed.WithCacheDSN(*flags.dbDSN))
	}
	return feedOpts
}

// buildSchedulerConfig constructs the dialogue scheduler configuration
func buildSchedulerConfig(flags Flags) dialogue.Config {
	cfg := dialogue.Config{
		ContextTimeout: *flags.contextTimeout,
	}
	if speaker := models.SpeakerID(*flags.initialSpeaker); models.IsValidSpeakerID(speaker) {
		cfg.InitialSpeaker = speaker
	} else if *flags.initialSpeaker != "" {
		slog.Warn("Ignoring invalid initial speaker", "initial_speaker", *flags.initialSpeaker)
	}
	return cfg
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
