package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/magd/internal/config"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "./magd_config.txt"

// NewCommand wraps run in a cobra command that loads the configuration,
// applies LOG_LEVEL and cancels ctx on SIGINT/SIGTERM.
func NewCommand(use, short string, run func(ctx context.Context) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:          use,
		Short:        short,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := SetupLogging(config.Get().LogLevel); err != nil {
				return err
			}

			ctx, stop := notifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
	cmd.Flags().String("config", DefaultConfigPath, "path to configuration file")
	return cmd
}

// notifyContext cancels ctx on the first of sigs and then restores the
// default signal action, so a second signal terminates a run that is stuck in
// a blocking read.
func notifyContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

// SetupLogging sets the level and format of the standard logger.
func SetupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}
