package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

type BackupOptions struct {
	GlobalOptions

	AliasType        string
	BatchSize        int64
	MinimumID        int64
	MaximumID        int64
	IncludeSecondary bool

	form service.BackupTypeRangeRequest
}

func DefaultBackupOptions() *BackupOptions {
	return &BackupOptions{
		GlobalOptions: DefaultGlobalOptions(),
		AliasType:     string(migration.AliasTypeName),
		BatchSize:     1000,
	}
}

func NewCmdBackup() *cobra.Command {
	o := DefaultBackupOptions()
	cmd := &cobra.Command{
		Use:          "backup TYPE",
		Short:        "Back up the rows of a type whose backup id is in [min-id, max-id).",
		Args:         cobra.ExactArgs(1),
		RunE:         runE(o),
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *BackupOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.AliasType, "alias-type", o.AliasType, fmt.Sprintf("Row alias mode. One of: (%s).", strings.Join(legalAliasModes, ", ")))
	fs.Int64Var(&o.BatchSize, "batch-size", o.BatchSize, "Maximum number of rows per container segment.")
	fs.Int64Var(&o.MinimumID, "min-id", o.MinimumID, "Smallest backup id included in the backup.")
	fs.Int64Var(&o.MaximumID, "max-id", o.MaximumID, "Backup id bound, excluded from the backup.")
	fs.BoolVar(&o.IncludeSecondary, "include-secondary", o.IncludeSecondary, "Include the secondary types of TYPE.")
}

func (o *BackupOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.form = service.BackupTypeRangeRequest{
		Type:                  model.RecordType(strings.ToUpper(args[0])),
		AliasType:             migration.AliasMode(strings.ToUpper(o.AliasType)),
		BatchSize:             o.BatchSize,
		MinimumID:             o.MinimumID,
		MaximumID:             o.MaximumID,
		IncludeSecondaryTypes: o.IncludeSecondary,
	}
	return nil
}

func (o *BackupOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if !funk.ContainsString(legalAliasModes, string(o.form.AliasType)) {
		return fmt.Errorf("alias type must be one of %s", strings.Join(legalAliasModes, ", "))
	}
	return o.validateForm(o.form)
}

func (o *BackupOptions) Run(ctx context.Context, args []string) error {
	form := o.form
	if mode, err := migration.ParseAliasMode(string(form.AliasType)); err == nil {
		form.AliasType = mode
	}

	return o.withService(ctx, func(svc *service.MigrationService) error {
		resp, err := svc.Backup(ctx, &form)
		if err != nil {
			return fmt.Errorf("backing up %s: %w", form.Type, err)
		}
		return o.print(resp)
	})
}
