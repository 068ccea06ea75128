package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type StatusOptions struct {
	GlobalOptions

	Message string

	form *service.StackStatusRequest
}

func DefaultStatusOptions() *StatusOptions {
	return &StatusOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdStatus() *cobra.Command {
	o := DefaultStatusOptions()
	cmd := &cobra.Command{
		Use:          "status [READ_WRITE | READ_ONLY | DOWN]",
		Short:        "Display or change the stack status.",
		Args:         cobra.MaximumNArgs(1),
		RunE:         runE(o),
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *StatusOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Message, "message", "m", o.Message, "Message stored with a new status.")
}

func (o *StatusOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	if len(args) == 1 {
		o.form = &service.StackStatusRequest{
			State:          model.StatusState(strings.ToUpper(args[0])),
			CurrentMessage: o.Message,
		}
	}
	return nil
}

func (o *StatusOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if o.form == nil {
		return nil
	}
	return o.validateForm(o.form)
}

func (o *StatusOptions) Run(ctx context.Context, args []string) error {
	return o.withService(ctx, func(svc *service.MigrationService) error {
		var (
			status *model.StackStatus
			err    error
		)
		if o.form == nil {
			status, err = svc.StackStatus(ctx)
		} else {
			status, err = svc.SetStackStatus(ctx, o.form)
		}
		if err != nil {
			return fmt.Errorf("stack status: %w", err)
		}
		return o.print(status)
	})
}
