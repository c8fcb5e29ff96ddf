package main

import (
	"github.com/spf13/cobra"

	"github.com/withObsrvr/productive-numbers/internal/config"
	"github.com/withObsrvr/productive-numbers/internal/logging"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "productive-numbers.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			logging.Component("config").Info("default configuration written", "path", path)
			return nil
		},
	})

	return cmd
}
