package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/AveryLor/BiasBreaker-sub000/internal/client/portal"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/config"
	"github.com/AveryLor/BiasBreaker-sub000/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var (
	flagVerbose bool
	flagStore   string
	flagPortal  string
)

var rootCmd = &cobra.Command{
	Use:           "newsctl",
	Short:         "Sign in to the news portal and search it from the terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "path to the credential store (default $CLIENT_STORE_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagPortal, "portal", "", "portal base URL (default $PORTAL_URL)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(searchCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "newsctl %s\n", version)
	},
}

func loadConfig() *config.Config {
	cfg := config.Load()
	if flagStore != "" {
		cfg.ClientStorePath = flagStore
	}
	if flagPortal != "" {
		cfg.PortalURL = flagPortal
	}
	return cfg
}

// withPortal opens the client stack for one command and tears it down after.
func withPortal(cmd *cobra.Command, fn func(ctx context.Context, p *portal.Portal) error) error {
	cfg := loadConfig()
	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	p, err := portal.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("opening portal: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("closing portal", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return fn(ctx, p)
}
