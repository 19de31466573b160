// Command lifelog is the command-line client for lifelogd.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aschepis/backscratcher/lifelog/client"
	"github.com/aschepis/backscratcher/lifelog/config"
	lifeloglogger "github.com/aschepis/backscratcher/lifelog/logger"
)

type app struct {
	server  string
	model   string
	locale  string
	logFile string

	cfg    *config.ClientConfig
	client *client.Client
	logger zerolog.Logger
	out    io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "lifelog",
		Short:         "Record memories and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.client != nil {
				return a.client.Close()
			}
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.server, "server", "", "lifelogd address (URL, host:port or unix socket path)")
	flags.StringVar(&a.model, "model", "", "model id; empty uses the configured default")
	flags.StringVar(&a.locale, "locale", "", "output language for analysis (zh or en)")
	flags.StringVar(&a.logFile, "logfile", lifeloglogger.DefaultLogFile, "path to log file")

	root.AddCommand(
		newAddCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newAnalyzeCmd(a),
		newAskCmd(a),
		newHistoryCmd(a),
		newGraphCmd(a),
		newModelsCmd(a),
		newConfigCmd(a),
	)
	return root
}

// connect loads the client config and dials the daemon. Flags override the
// config file.
func (a *app) connect() error {
	logger, err := lifeloglogger.InitWithOptions(a.logFile, false)
	if err != nil {
		return err
	}
	a.logger = logger

	cfg, err := config.LoadClientConfig(config.GetClientConfigPath())
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to load client configuration, using defaults")
		cfg = &config.ClientConfig{ServerURL: "http://" + client.DefaultAddress, Timeout: 120}
	}
	a.cfg = cfg

	address := a.server
	if address == "" {
		address = cfg.ServerURL
	}
	if a.model == "" {
		a.model = cfg.Model
	}
	if a.locale == "" {
		a.locale = cfg.Locale
	}

	c, err := client.Connect(address, client.WithTimeout(time.Duration(cfg.Timeout)*time.Second))
	if err != nil {
		return fmt.Errorf("cannot connect to lifelogd at %s: %w", address, err)
	}
	a.client = c
	a.logger.Debug().Str("address", address).Msg("Connected client")
	return nil
}

func (a *app) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
