package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coreboard/snmpagentd/internal/config"
)

// newRootCmd builds the Cobra command tree, binding every flag from the external interface's
// CLI surface table onto a single fresh Viper instance per invocation.
func newRootCmd() (*cobra.Command, *viper.Viper) {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "snmpagentd",
		Short: "A minimal SNMP v1/v2c agent serving system, interface, and host-resource MIBs",
		SilenceUsage: true,
	}
	config.BindFlags(cmd.Flags(), v)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if file := v.GetString("file"); file != "" {
			v.SetConfigFile(file)
			if err := v.MergeInConfig(); err != nil {
				return fmt.Errorf("reading config file %s: %w", file, err)
			}
		}
		cfg := config.FromViper(v)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "snmpagentd: invalid configuration:", err)
			os.Exit(1)
		}
		return run(cfg)
	}
	return cmd, v
}
