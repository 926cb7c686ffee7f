package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat-server/internal/app"
	"github.com/vovakirdan/roomchat-server/internal/config"
	"github.com/vovakirdan/roomchat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		staticDir  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "roomchat-server",
		Short:        "Real-time room chat server over websockets",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootstrapLog := log.New(logLevel)

			cfg, cfgPath, err := config.Load(bootstrapLog, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Flags set explicitly override file and env values.
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("static-dir") {
				cfg.StaticDir = staticDir
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", cfgPath).Str("addr", cfg.Addr).Msg("starting roomchat server")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application := app.New(cfg, logger)
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}

			logger.Info().Msg("server stopped")
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&addr, "addr", "a", defaults.Addr, "HTTP listen address")
	cmd.Flags().StringVar(&staticDir, "static-dir", defaults.StaticDir, "directory with chat UI assets")
	cmd.Flags().StringVarP(&logLevel, "log-level", "l", defaults.LogLevel, "log level (debug, info, warn, error)")

	return cmd
}
