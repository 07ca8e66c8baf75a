package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/thrive/cmd/do/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "do",
		Short:        "Development and operations tools for thrive",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.JobCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
