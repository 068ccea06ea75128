package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

const (
	rangeChecksum = "range"
	typeChecksum  = "type"
	batchChecksum = "batch"
)

var legalChecksumKinds = []string{rangeChecksum, typeChecksum, batchChecksum}

type ChecksumOptions struct {
	GlobalOptions

	Salt      string
	MinimumID int64
	MaximumID int64
	BatchSize int64

	kind       string
	recordType model.RecordType
}

func DefaultChecksumOptions() *ChecksumOptions {
	return &ChecksumOptions{
		GlobalOptions: DefaultGlobalOptions(),
		BatchSize:     10000,
	}
}

func NewCmdChecksum() *cobra.Command {
	o := DefaultChecksumOptions()
	cmd := &cobra.Command{
		Use:   "checksum (range | type | batch) TYPE",
		Short: "Compute a checksum of the rows of a type.",
		Long: `Compute a checksum of the rows of a type.

range   checksums the rows whose backup id is in [min-id, max-id), salted.
type    checksums every row of the type. The stack must be READ_ONLY.
batch   checksums [min-id, max-id) in bins of batch-size ids, salted.`,
		Args:         cobra.ExactArgs(2),
		RunE:         runE(o),
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *ChecksumOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.Salt, "salt", o.Salt, "Salt mixed into range and batch checksums.")
	fs.Int64Var(&o.MinimumID, "min-id", o.MinimumID, "Smallest backup id included.")
	fs.Int64Var(&o.MaximumID, "max-id", o.MaximumID, "Backup id bound, excluded.")
	fs.Int64Var(&o.BatchSize, "batch-size", o.BatchSize, "Number of ids per bin of a batch checksum.")
}

func (o *ChecksumOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.kind = strings.ToLower(args[0])
	o.recordType = model.RecordType(strings.ToUpper(args[1]))
	return nil
}

func (o *ChecksumOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if !funk.ContainsString(legalChecksumKinds, o.kind) {
		return fmt.Errorf("checksum kind must be one of %s", strings.Join(legalChecksumKinds, ", "))
	}
	form, err := o.form()
	if err != nil {
		return err
	}
	return o.validateForm(form)
}

func (o *ChecksumOptions) form() (any, error) {
	switch o.kind {
	case rangeChecksum:
		return &service.RangeChecksumRequest{Type: o.recordType, Salt: o.Salt, MinimumID: o.MinimumID, MaximumID: o.MaximumID}, nil
	case typeChecksum:
		return &service.TypeChecksumRequest{Type: o.recordType}, nil
	case batchChecksum:
		return &service.BatchChecksumRequest{Type: o.recordType, Salt: o.Salt, MinimumID: o.MinimumID, MaximumID: o.MaximumID, BatchSize: o.BatchSize}, nil
	default:
		return nil, fmt.Errorf("unsupported checksum kind: %s", o.kind)
	}
}

func (o *ChecksumOptions) Run(ctx context.Context, args []string) error {
	form, err := o.form()
	if err != nil {
		return err
	}

	return o.withService(ctx, func(svc *service.MigrationService) error {
		var (
			resp any
			err  error
		)
		switch f := form.(type) {
		case *service.RangeChecksumRequest:
			resp, err = svc.RangeChecksum(ctx, f)
		case *service.TypeChecksumRequest:
			resp, err = svc.TypeChecksum(ctx, f)
		case *service.BatchChecksumRequest:
			resp, err = svc.BatchChecksums(ctx, f)
		}
		if err != nil {
			return fmt.Errorf("computing %s checksum of %s: %w", o.kind, o.recordType, err)
		}
		return o.print(resp)
	})
}
