// Package main provides the lumen CLI.
// lumen renders shell prompts from themes and keeps them current while the shell runs.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lumen/internal/composer"
	"lumen/internal/config"
	"lumen/internal/logger"
	"lumen/internal/theme"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
	testMode bool

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "lumen - themeable shell prompts",
	Long: `lumen composes shell prompts from themes and segments.
Load it into your shell with: eval "$(lumen init zsh)"`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/lumen/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&testMode, "test-mode", false, "Run in deterministic test mode")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"log.level": "log-level",
		"log.file":  "log-file",
		"test_mode": "test-mode",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newThemesCmd())
	rootCmd.AddCommand(newCoprocCmd())
	rootCmd.AddCommand(newDemoCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Configure logger before any command execution
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	var err error
	cfg, err = config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	testMode = viper.GetBool("test_mode")

	if err := logger.Configure(cfg.Log.Level, cfg.Log.File, testMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	if cfg.File != "" {
		logger.Debug("Configuration loaded", "file", cfg.File)
	}
}

// newComposer builds a composer for shell. Terminal colors are detected on stderr,
// which stays attached to the terminal when stdout is captured by the shell.
func newComposer(shell string, queryBackground bool) (*composer.Composer, error) {
	env := composer.DetectEnvironment(shell, termenv.NewOutput(os.Stderr), queryBackground)
	return composer.New(cfg.ComposerOptions(testMode), env)
}

// shutdownTimeout bounds how long a fetch in flight may delay exit.
const shutdownTimeout = 500 * time.Millisecond

func closeComposer(c *composer.Composer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		logger.Debug("Composer did not stop cleanly", "error", err)
	}
}

// loadThemes returns a theme store holding the builtin and configured themes.
func loadThemes() *theme.Store {
	store := theme.NewStore()
	theme.Bootstrap(store, cfg.ThemeDirs)
	return store
}
