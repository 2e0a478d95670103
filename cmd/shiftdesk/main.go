package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/avolkov/shiftdesk/internal/api"
	"github.com/avolkov/shiftdesk/internal/store"
	"github.com/avolkov/shiftdesk/internal/util"
	"github.com/avolkov/shiftdesk/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ShiftDesk state data
	DefaultStateDir = "/var/lib/shiftdesk"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "shiftdesk.db"
	// DefaultSessionDBFileName is the default WhatsApp session database filename
	DefaultSessionDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	waOpts := buildWhatsAppOptions(flags)
	storeOpts := buildStoreOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping ShiftDesk with configured modules")
	slog.Debug("Module options counts", "whatsapp", len(waOpts), "store", len(storeOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(waOpts, storeOpts, apiOpts); err != nil {
		slog.Error("ShiftDesk failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ShiftDesk exited successfully")
}

// Config holds environment configuration
type Config struct {
	StoreDSN   string
	SessionDSN string
	StateDir   string
	APIAddr    string
	Debug      bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput   *string
	numeric    *bool
	stateDir   *string
	dbDSN      *string
	sessionDSN *string
	apiAddr    *string
}

// initializeLogger sets up structured logging. SHIFTDESK_DEBUG raises the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SHIFTDESK_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StoreDSN:   os.Getenv("DATABASE_URL"),
		SessionDSN: os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:   os.Getenv("SHIFTDESK_STATE_DIR"),
		APIAddr:    os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SHIFTDESK_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Default store and session databases to SQLite files in the state directory.
	if config.StoreDSN == "" {
		config.StoreDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.StoreDSN)
	}
	if config.SessionDSN == "" {
		config.SessionDSN = filepath.Join(config.StateDir, DefaultSessionDBFileName)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"WHATSAPP_DB_DSN_SET", os.Getenv("WHATSAPP_DB_DSN") != "",
		"SHIFTDESK_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:   flag.String("qr-output", "", "path to write login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:   flag.String("state-dir", config.StateDir, "state directory for ShiftDesk data (overrides $SHIFTDESK_STATE_DIR)"),
		dbDSN:      flag.String("db-dsn", config.StoreDSN, "store DSN: postgres://, .json file or SQLite path (overrides $DATABASE_URL)"),
		sessionDSN: flag.String("session-db-dsn", config.SessionDSN, "WhatsApp session database DSN (overrides $WHATSAPP_DB_DSN)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr)

	// Follow an overridden state directory for the default database paths.
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
			slog.Debug("Updated store DSN for overridden state directory", "db_path", *flags.dbDSN)
		}
		if *flags.sessionDSN == filepath.Join(config.StateDir, DefaultSessionDBFileName) {
			*flags.sessionDSN = filepath.Join(*flags.stateDir, DefaultSessionDBFileName)
		}
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.sessionDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.sessionDSN))
	}
	return waOpts
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	switch store.DetectDSNType(*flags.dbDSN) {
	case "postgres":
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
	case "file":
		slog.Debug("Detected JSON file DSN, configuring file store", "path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithFilePath(*flags.dbDSN))
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
	}
	return storeOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	apiOpts := []api.Option{api.WithStateDir(*flags.stateDir)}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
