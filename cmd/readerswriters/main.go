package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gitlab.com/slon/readerswriters/simulate"
)

func newRunCmd() *cobra.Command {
	var configPath string
	flags := defaultConfig()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run readers and writers against each strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = loadConfig(configPath); err != nil {
					return err
				}
			}
			cfg.override(cmd.Flags(), flags)
			if err := cfg.validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a .yaml config")
	bindFlags(cmd.Flags(), &flags)
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List strategies",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range simulate.Names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "readerswriters",
		Short:        "The readers–writers problem solved five ways",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newListCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
