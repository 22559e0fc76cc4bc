// Package cmd holds the devlearner command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Partho99/devops-learner/internal/config"
	"github.com/Partho99/devops-learner/internal/logging"
	"github.com/Partho99/devops-learner/internal/termsession"
	"github.com/Partho99/devops-learner/internal/transport"
)

var (
	endpointFlag string
	logLevelFlag string
)

// Execute is the main entry point called from main.go.
func Execute(version string) {
	if err := newRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "devlearner",
		Short:   "DevOps Learner terminal and portal backend",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.Load()
			if endpointFlag != "" {
				config.Cfg.TerminalEndpoint = endpointFlag
			}
			if logLevelFlag != "" {
				config.Cfg.LogLevel = logLevelFlag
			}
			logging.Init(config.Cfg.LogPath, config.Cfg.LogLevel)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&endpointFlag, "endpoint", "e", "", "terminal server WebSocket URL (overrides DEVLEARNER_TERMINAL_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTermCmd())
	rootCmd.AddCommand(newRunCmd())

	return rootCmd
}

// sessionConfig builds the terminal session template from settings.
func sessionConfig(s config.Settings) termsession.Config {
	return termsession.Config{
		Endpoint:     s.TerminalEndpoint,
		Banner:       s.BannerLines(),
		HistoryLimit: s.TerminalHistoryLimit,
		Reconnect:    transport.PolicyFor(s.TerminalReconnectAttempts, s.ReconnectInitial(), s.ReconnectMax()),
		Record:       s.TerminalRecordingDir != "",
		RecordingDir: s.TerminalRecordingDir,
		Transport: transport.Options{
			HandshakeTimeout: s.HandshakeTimeout(),
		},
	}
}
