package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"chat-hub/internal/config"
	"chat-hub/internal/db"
	"chat-hub/internal/logging"
)

// Flag variables.
var (
	logFile  string
	logLevel int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chat-hub",
	Short: "Real-time chat hub: websocket sessions, message fan-out and the REST API around them.",
	Args:  cobra.NoArgs,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and gRPC health servers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Connect applies the migrations.
		database, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return err
		}
		jww.INFO.Printf("migrations applied driver=%s", cfg.DBDriver)
		return database.Close()
	},
}

// loadConfig reads the environment and initializes logging. Command line
// flags take precedence over LOG_LEVEL and LOG_FILE.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("logLevel") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log") {
		cfg.LogFile = logFile
	}
	if err := logging.Init(jww.Threshold(cfg.LogLevel), cfg.LogFile); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, nil
}

// init is the initialization function for Cobra which defines flags.
func init() {
	rootCmd.PersistentFlags().StringVarP(&logFile, "log", "l", "-",
		"Log output path. By default, logs are printed to stdout. "+
			"To disable logging, set this to empty (\"\").")
	rootCmd.PersistentFlags().IntVarP(&logLevel, "logLevel", "v", 2,
		"Verbosity level of logging. 0 = TRACE, 1 = DEBUG, 2 = INFO, "+
			"3 = WARN, 4 = ERROR, 5 = CRITICAL, 6 = FATAL")

	rootCmd.AddCommand(serveCmd, migrateCmd)
}
