package cli

import (
	"context"
	"fmt"

	"github.com/kubev2v/stack-migration/pkg/version"
	"github.com/spf13/cobra"
)

type VersionOptions struct {
	GlobalOptions
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the stack migrator version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	if o.Output == "" {
		_, err := fmt.Fprintf(o.out, "Stack Migrator Version: %s\n", version.Get())
		return err
	}
	return o.print(version.Get())
}
