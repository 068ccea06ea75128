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

type RangesOptions struct {
	GlobalOptions

	MinimumID    int64
	MaximumID    int64
	RowsPerRange int64

	form service.CalculateOptimalRangeRequest
}

func DefaultRangesOptions() *RangesOptions {
	return &RangesOptions{
		GlobalOptions: DefaultGlobalOptions(),
		RowsPerRange:  10000,
	}
}

func NewCmdRanges() *cobra.Command {
	o := DefaultRangesOptions()
	cmd := &cobra.Command{
		Use:          "ranges TYPE",
		Short:        "Split [min-id, max-id) of a primary type into ranges of about rows-per-range rows.",
		Args:         cobra.ExactArgs(1),
		RunE:         runE(o),
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *RangesOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.Int64Var(&o.MinimumID, "min-id", o.MinimumID, "Smallest backup id included.")
	fs.Int64Var(&o.MaximumID, "max-id", o.MaximumID, "Backup id bound, excluded.")
	fs.Int64Var(&o.RowsPerRange, "rows-per-range", o.RowsPerRange, "Target number of rows, secondary rows included, per range.")
}

func (o *RangesOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.form = service.CalculateOptimalRangeRequest{
		Type:                model.RecordType(strings.ToUpper(args[0])),
		MinimumID:           o.MinimumID,
		MaximumID:           o.MaximumID,
		OptimalRowsPerRange: o.RowsPerRange,
	}
	return nil
}

func (o *RangesOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	return o.validateForm(o.form)
}

func (o *RangesOptions) Run(ctx context.Context, args []string) error {
	return o.withService(ctx, func(svc *service.MigrationService) error {
		resp, err := svc.CalculateOptimalRanges(ctx, &o.form)
		if err != nil {
			return fmt.Errorf("calculating ranges of %s: %w", o.form.Type, err)
		}
		return o.print(resp)
	})
}
