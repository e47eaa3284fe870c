// Package cmd provides the CLI commands for defensed.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	defense "github.com/jassus213/go-defense"
	zapadapter "github.com/jassus213/go-defense/adapters/zap"
	"github.com/jassus213/go-defense/config"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "defensed",
	Short: "defensed - counter-based defenses for login lockout and abuse detection",
	Long: `defensed evaluates defenses declared in a YAML file against a counter
store (memory, Redis or SQLite).

Configuration:
  Config is loaded from --config, or defense.yaml in the current directory.
  A .env file in the current directory is loaded first.

  Environment variables can override store settings with the DEFENSE_ prefix.
  Example: DEFENSE_STORE_REDIS_ADDR=redis:6379

Commands:
  serve       Start the demo HTTP server with a guarded /login
  check       Evaluate the defenses for a key
  hit         Record an event for a key
  reset       Reset every counter behind the defenses for a key
  get         Print a raw counter`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./defense.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("defense")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// Environment variable support: DEFENSE_STORE_REDIS_ADDR
	viper.SetEnvPrefix("DEFENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Defenses are arrays and only come from the file.
	for _, key := range []string{
		"server.addr",
		"server.count_status",
		"store.type",
		"store.key_prefix",
		"store.cleanup_interval",
		"store.redis.addr",
		"store.redis.password",
		"store.redis.db",
		"store.sqlite.path",
	} {
		_ = viper.BindEnv(key)
	}
}

// loadConfig reads the configuration file, applies environment overrides,
// sets defaults and validates the result.
func loadConfig() (*config.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg, viper.DecodeHook(config.DecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config.Finish(&cfg)
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// env is what every subcommand works with.
type env struct {
	cfg     *config.Config
	store   defense.CounterStore
	builder *config.Builder
	logger  *zap.Logger
	close   func() error
}

// setup loads the config, opens the store and builds the defenses. Extra
// options are applied to every condition and defense.
func setup(ctx context.Context, opts ...defense.Option) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	// Stops the store's background goroutines on close.
	ctx, cancel := context.WithCancel(ctx)
	st, closeStore, err := config.OpenStore(ctx, cfg.Store)
	if err != nil {
		cancel()
		_ = logger.Sync()
		return nil, err
	}

	opts = append([]defense.Option{defense.WithLogger(zapadapter.New(logger))}, opts...)
	return &env{
		cfg:     cfg,
		store:   st,
		builder: config.NewBuilder(cfg, st, opts...),
		logger:  logger,
		close: func() error {
			cancel()
			_ = logger.Sync()
			return closeStore()
		},
	}, nil
}
