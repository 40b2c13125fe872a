package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/rtconn-go/pkg/config"
	"github.com/ajitpratap0/rtconn-go/pkg/logging"
)

// app carries the global flags and the state PersistentPreRunE derives from them.
type app struct {
	cfgFile    string
	url        string
	transports []string
	format     string
	logLevel   string

	stdin  io.Reader
	cfg    *config.Config
	logger logging.Logger
}

// newRootCmd builds the command tree. stdin feeds the connect command.
func newRootCmd(stdin io.Reader) *cobra.Command {
	a := &app{stdin: stdin}

	root := &cobra.Command{
		Use:   "rtconnctl",
		Short: "Negotiate with and connect to real-time endpoints",
		Long: `rtconnctl drives the rtconn client from the command line. It can print a
server's negotiation result and hold a connection open, printing received
messages and sending every line read from standard input.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.url, "url", "", "endpoint URL (overrides the config file)")
	root.PersistentFlags().StringSliceVar(&a.transports, "transport", nil, "allowed transports: WebSockets, ServerSentEvents, LongPolling")
	root.PersistentFlags().StringVar(&a.format, "format", "", "transfer format: Text or Binary")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newNegotiateCmd(a), newConnectCmd(a), newVersionCmd())
	return root
}

// load reads the config file, then applies the environment and flags on top.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.cfgFile != "" {
		var err error
		if cfg, err = config.Load(a.cfgFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)

	if a.url != "" {
		cfg.URL = a.url
	}
	if len(a.transports) > 0 {
		cfg.Transports = a.transports
	}
	if a.format != "" {
		cfg.TransferFormat = a.format
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger.WithFields(logging.String("component", "rtconnctl"))
	return nil
}

func (a *app) requireURL() error {
	if a.cfg.URL == "" {
		return fmt.Errorf("no endpoint URL: pass --url or set url in the config file")
	}
	return nil
}
