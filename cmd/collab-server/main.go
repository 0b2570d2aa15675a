package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rejdeboer/collab-server/internal/application"
	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/rejdeboer/collab-server/internal/logger"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configDir string
		port      uint16
		salt      string
	)

	cmd := &cobra.Command{
		Use:           "collab-server",
		Short:         "Real-time collaborative document rooms over websockets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Get()

			settings, err := configuration.ReadConfiguration(configDir)
			if err != nil {
				log.Error().Err(err).Msg("invalid configuration")
				return err
			}
			if cmd.Flags().Changed("port") {
				settings.Application.Port = port
			}
			if cmd.Flags().Changed("salt") {
				settings.Application.PasswordSalt = salt
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app := application.Build(settings)
			if err := app.Start(ctx); err != nil {
				log.Error().Err(err).Msg("server stopped with error")
				return err
			}

			log.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config", "./configuration", "directory holding base.yml and <environment>.yml")
	cmd.Flags().Uint16Var(&port, "port", 0, "listening port, overrides the configuration")
	cmd.Flags().StringVar(&salt, "salt", "", "password hashing salt, overrides the configuration")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	cmd.SetContext(context.Background())
	return cmd
}
