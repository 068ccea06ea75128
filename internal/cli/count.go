package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"github.com/spf13/cobra"
	"github.com/thoas/go-funk"
)

type CountOptions struct {
	GlobalOptions

	form service.TypeCountsRequest
}

func DefaultCountOptions() *CountOptions {
	return &CountOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdCount() *cobra.Command {
	o := DefaultCountOptions()
	cmd := &cobra.Command{
		Use:          "count TYPE...",
		Short:        "Print the row count and id bounds of one or more types.",
		Args:         cobra.MinimumNArgs(1),
		RunE:         runE(o),
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *CountOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	types := funk.Map(args, func(a string) model.RecordType {
		return model.RecordType(strings.ToUpper(a))
	}).([]model.RecordType)
	o.form = service.TypeCountsRequest{Types: types}
	return nil
}

func (o *CountOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	return o.validateForm(o.form)
}

func (o *CountOptions) Run(ctx context.Context, args []string) error {
	return o.withService(ctx, func(svc *service.MigrationService) error {
		counts, err := svc.TypeCounts(ctx, &o.form)
		if err != nil {
			return fmt.Errorf("counting rows: %w", err)
		}
		return o.print(counts)
	})
}
