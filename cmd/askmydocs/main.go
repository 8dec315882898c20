package main

// @title           AskMyDocs API
// @version         1.0
// @description     Retrieval-augmented question answering over uploaded documents.

// @contact.name   AskMyDocs OSS
// @contact.url    https://github.com/custodia-labs/askmydocs/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /api/v1
// @schemes   http https

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/custodia-labs/askmydocs/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	v          *viper.Viper
	configPath string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.NewViper()}

	root := &cobra.Command{
		Use:           "askmydocs",
		Short:         "Ask questions about your documents",
		Long:          "askmydocs indexes PDF, text and markdown documents and answers questions grounded in them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default "+config.DefaultPath+" if present)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = c.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		c.newServeCmd(),
		c.newIndexCmd(),
		c.newAskCmd(),
		c.newConfigCmd(),
	)
	return root
}

// load resolves configuration and installs the default logger.
func (c *cli) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadViper(c.v, c.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(cfg.Log.Handler(cmd.ErrOrStderr()))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}
