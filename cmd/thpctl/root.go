package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	packetLen int

	// Shared state set during PersistentPreRun
	cfg *Config
)

var rootCmd = &cobra.Command{
	Use:   "thpctl",
	Short: "THP secure channel tool: simulate sessions, decode packets, generate keys",
	Long: `thpctl drives the THP host and device channel state machines without
hardware. It can run complete sessions over a simulated lossy link, dissect
captured packets and generate static key pairs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = DefaultConfigPath()
		}
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if packetLen != 0 {
			cfg.PacketLen = packetLen
		}

		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		logrus.SetLevel(level)
		logrus.SetOutput(cmd.ErrOrStderr())
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.thp/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warning, error")
	rootCmd.PersistentFlags().IntVar(&packetLen, "packet-len", 0, "link packet length in bytes (default 64)")
}
