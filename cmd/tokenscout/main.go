// Command tokenscout runs the token discovery and scam classification
// pipeline: a chain monitor plus the enrichment and classifier sweeps, all
// sharing one PostgreSQL database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cmdrvl/tokenscout/pkg/config"
)

var (
	flagConfig   string
	flagLogLevel string
	flagPretty   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tokenscout",
		Short:         "ERC20 token discovery and scam classification pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./tokenscout.yaml)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "human-readable log output")

	root.AddCommand(
		newRunCmd(),
		newMigrateCmd(),
		newCollectorCmd("monitor", "Run only the chain monitor", taskChainMonitor),
		newCollectorCmd("sources", "Run only the contract source sweeps", taskSourceDiscovery, taskSourceRetry, taskOwnerHistory),
		newCollectorCmd("audit", "Run only the audit sweep", taskAudit),
		newCollectorCmd("links", "Run only the link extraction sweep", taskLinks),
		newCollectorCmd("social", "Run only the social sweeps", taskSocialDiscover, taskSocialCheck, taskSocialTweets),
		newCollectorCmd("classify-contracts", "Run only the contract classifier sweep", taskClassifyContract),
		newCollectorCmd("classify-accounts", "Run only the account classifier sweep", taskClassifyAccount),
	)
	return root
}

// setup loads .env, the config file and configures logging. A missing config
// file is not fatal: defaults plus environment can be a complete
// configuration.
func setup() error {
	_ = godotenv.Load()

	if flagConfig != "" {
		viper.SetConfigFile(flagConfig)
	} else {
		viper.SetConfigName("tokenscout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/tokenscout")
	}
	viper.SetEnvPrefix("TOKENSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	} else {
		viper.WatchConfig()
		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Info().Str("file", e.Name).Msg("config file changed, restart to apply")
		})
	}

	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", flagLogLevel)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if flagPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(allTasks()...)
		},
	}
}

func newCollectorCmd(use, short string, tasks ...taskName) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(tasks...)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app, err := newApp(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Store().Migrate(); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

// runTasks wires the requested tasks and runs them until SIGINT/SIGTERM.
func runTasks(names ...taskName) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	log.Info().
		Str("name", cfg.Name).
		Str("network", cfg.Network).
		Uint64("chain_id", cfg.ChainID).
		Int("tasks", len(names)).
		Msg("starting pipeline")

	return app.Run(ctx, names)
}
