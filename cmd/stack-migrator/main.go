package main

import (
	"os"

	"github.com/kubev2v/stack-migration/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	command := NewStackMigratorCommand()
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func NewStackMigratorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stack-migrator [flags] [options]",
		Short: "stack-migrator moves database rows between stacks through backup containers.",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(runCmd)
	cmd.AddCommand(migrateCmd)
	cmd.AddCommand(cli.NewCmdBackup())
	cmd.AddCommand(cli.NewCmdRestore())
	cmd.AddCommand(cli.NewCmdCount())
	cmd.AddCommand(cli.NewCmdChecksum())
	cmd.AddCommand(cli.NewCmdRanges())
	cmd.AddCommand(cli.NewCmdTypes())
	cmd.AddCommand(cli.NewCmdStatus())
	cmd.AddCommand(cli.NewCmdVersion())

	return cmd
}
