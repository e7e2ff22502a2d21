package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/thp/crypto"
)

var keygenFormat string

type keyOutput struct {
	Public  string `yaml:"public"`
	Private string `yaml:"private"`
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a Curve25519 static key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := cfg.Options()
		if err != nil {
			return err
		}
		kp, err := crypto.GenerateKeyPair(opts.Backend)
		if err != nil {
			return err
		}
		defer crypto.WipeKeyPair(kp)

		out := keyOutput{
			Public:  hex.EncodeToString(kp.Public[:]),
			Private: hex.EncodeToString(kp.Private[:]),
		}
		switch keygenFormat {
		case "text":
			fmt.Fprintf(cmd.OutOrStdout(), "public:  %s\nprivate: %s\n", out.Public, out.Private)
		case "yaml":
			data, err := yaml.Marshal(&out)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		default:
			return fmt.Errorf("unknown output format %q", keygenFormat)
		}
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenFormat, "output", "o", "text", "output format: text, yaml")
	rootCmd.AddCommand(keygenCmd)
}
