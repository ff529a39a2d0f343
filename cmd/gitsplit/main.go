package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AgenticCurve/gitsplit/internal/config"
	"github.com/AgenticCurve/gitsplit/internal/logging"
	"github.com/AgenticCurve/gitsplit/internal/oracle"
	"github.com/AgenticCurve/gitsplit/internal/session"
)

var (
	flagVerbose   bool
	flagWorkspace string
	flagAPIKey    string
	flagModel     string
	flagMaxCost   float64

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gitsplit",
	Short: "Split one oversized git branch into stacked, single-intent branches",
	Long: `gitsplit analyzes the diff between a working branch and its base,
groups the changes into distinct intents, and rebuilds them as a stack
of focused branches whose tip is byte-identical to the original.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagWorkspace == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve working directory: %w", err)
			}
			flagWorkspace = wd
		}

		zapCfg := zap.NewProductionConfig()
		if flagVerbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}

		cfg, err = config.Load(flagWorkspace)
		if err != nil {
			return err
		}
		if flagAPIKey != "" {
			cfg.Oracle.APIKey = flagAPIKey
		}
		if flagModel != "" {
			cfg.Oracle.Model = flagModel
		}
		if flagMaxCost > 0 {
			cfg.Oracle.MaxCost = flagMaxCost
		}
		if flagVerbose {
			cfg.Logging.DebugMode = true
		}

		if err := logging.Initialize(flagWorkspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		if logging.IsDebugMode() {
			logger.Debug("category logs enabled",
				zap.String("dir", filepath.Join(flagWorkspace, ".gitsplit", "logs")))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "repository path (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "OpenRouter API key (default: OPENROUTER_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "pin a specific model, disabling tier escalation")
	rootCmd.PersistentFlags().Float64Var(&flagMaxCost, "max-cost", 0, "abort before exceeding this USD spend")

	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(verifyCmd)
}

// openStore builds the configured session store. The returned closer is
// a no-op for the JSON store.
func openStore() (session.Store, func() error, error) {
	switch cfg.Session.Store {
	case "sqlite":
		store, err := session.NewSQLiteStore(filepath.Join(cfg.Session.Dir, "sessions.db"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := session.NewJSONStore(cfg.Session.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	}
}

func newOracleClient() (*oracle.Client, error) {
	timeout, err := time.ParseDuration(cfg.Oracle.Timeout)
	if err != nil {
		timeout = 0
	}
	return oracle.NewClient(oracle.Config{
		APIKey:        cfg.Oracle.APIKey,
		BaseURL:       cfg.Oracle.BaseURL,
		ModelOverride: cfg.Oracle.Model,
		MaxCost:       cfg.Oracle.MaxCost,
		Timeout:       timeout,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
