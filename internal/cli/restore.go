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

type RestoreOptions struct {
	GlobalOptions

	AliasType    string
	BatchSize    int64
	MinimumRowID int64
	MaximumRowID int64

	form service.RestoreTypeRequest
}

func DefaultRestoreOptions() *RestoreOptions {
	return &RestoreOptions{
		GlobalOptions: DefaultGlobalOptions(),
		AliasType:     string(migration.AliasTypeName),
		BatchSize:     1000,
	}
}

func NewCmdRestore() *cobra.Command {
	o := DefaultRestoreOptions()
	cmd := &cobra.Command{
		Use:          "restore TYPE BACKUP_KEY",
		Short:        "Restore a backup container into the database.",
		Args:         cobra.ExactArgs(2),
		RunE:         runE(o),
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *RestoreOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVar(&o.AliasType, "alias-type", o.AliasType, fmt.Sprintf("Row alias mode of the container. One of: (%s).", strings.Join(legalAliasModes, ", ")))
	fs.Int64Var(&o.BatchSize, "batch-size", o.BatchSize, "Maximum number of rows written per transaction.")
	fs.Int64Var(&o.MinimumRowID, "min-row-id", o.MinimumRowID, "Start of the id range deleted before restoring a backup without manifest.")
	fs.Int64Var(&o.MaximumRowID, "max-row-id", o.MaximumRowID, "End, excluded, of the id range deleted before restoring a backup without manifest.")
}

func (o *RestoreOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.form = service.RestoreTypeRequest{
		Type:          model.RecordType(strings.ToUpper(args[0])),
		AliasType:     migration.AliasMode(strings.ToUpper(o.AliasType)),
		BatchSize:     o.BatchSize,
		BackupFileKey: args[1],
	}
	if cmd.Flags().Changed("min-row-id") {
		o.form.MinimumRowID = &o.MinimumRowID
	}
	if cmd.Flags().Changed("max-row-id") {
		o.form.MaximumRowID = &o.MaximumRowID
	}
	return nil
}

func (o *RestoreOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if !funk.ContainsString(legalAliasModes, string(o.form.AliasType)) {
		return fmt.Errorf("alias type must be one of %s", strings.Join(legalAliasModes, ", "))
	}
	if (o.form.MinimumRowID == nil) != (o.form.MaximumRowID == nil) {
		return fmt.Errorf("min-row-id and max-row-id must be set together")
	}
	return o.validateForm(o.form)
}

func (o *RestoreOptions) Run(ctx context.Context, args []string) error {
	form := o.form
	if mode, err := migration.ParseAliasMode(string(form.AliasType)); err == nil {
		form.AliasType = mode
	}

	return o.withService(ctx, func(svc *service.MigrationService) error {
		resp, err := svc.Restore(ctx, &form)
		if err != nil {
			return fmt.Errorf("restoring %s: %w", form.BackupFileKey, err)
		}
		return o.print(resp)
	})
}
