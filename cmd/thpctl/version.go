package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.thpctlVersion=x.y.z"
var thpctlVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show thpctl version and the Noise protocol in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "thpctl version %s\n", thpctlVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "protocol: Noise_XX_%s\n", opts.Backend.CipherSuite().Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
