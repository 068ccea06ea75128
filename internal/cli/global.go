package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kubev2v/stack-migration/internal/blob"
	"github.com/kubev2v/stack-migration/internal/config"
	"github.com/kubev2v/stack-migration/internal/handlers/validator"
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/service"
	"github.com/kubev2v/stack-migration/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
	legalAliasModes  = []string{string(migration.AliasTableName), string(migration.AliasTypeName), "MIGRATION_TYPE_NAME"}
)

// GlobalOptions are shared by every command. Commands talk to the database
// and the blob store configured through the environment.
type GlobalOptions struct {
	Output string

	out       io.Writer
	validator *validator.Validator
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Output: yamlFormat,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	o.out = cmd.OutOrStdout()
	o.validator = validator.NewValidator().
		Register(validator.NewMigrationValidationRules()...).
		Register(validator.NewStatusValidationRules()...)
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if len(o.Output) > 0 && !funk.ContainsString(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *GlobalOptions) validateForm(form any) error {
	return o.validator.Struct(form)
}

func (o *GlobalOptions) print(v any) error {
	var (
		marshalled []byte
		err        error
	)
	switch o.Output {
	case jsonFormat:
		marshalled, err = json.MarshalIndent(v, "", "  ")
	default:
		marshalled, err = yaml.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshalling output: %w", err)
	}
	_, err = fmt.Fprintf(o.out, "%s\n", strings.TrimRight(string(marshalled), "\n"))
	return err
}

// withService runs fn against a migration service built from the environment.
func (o *GlobalOptions) withService(ctx context.Context, fn func(svc *service.MigrationService) error) error {
	cfg, err := config.NewDefault()
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	opts, err := ServiceOptions(cfg)
	if err != nil {
		return err
	}

	db, err := store.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("initializing data store: %w", err)
	}
	s := store.NewStore(db)
	defer func() { _ = s.Close() }()

	b, err := blob.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing blob store: %w", err)
	}

	return fn(service.NewMigrationService(s, b, opts...))
}

// ServiceOptions returns the migration service options described by cfg:
// segment format, stack identity and batch limit.
func ServiceOptions(cfg *config.Config) ([]service.MigrationServiceOption, error) {
	format, err := migration.FormatByName(cfg.Backup.Format)
	if err != nil {
		return nil, err
	}

	return []service.MigrationServiceOption{
		service.WithCodec(migration.NewCodec(migration.DefaultRegistry(), migration.WithSegmentFormat(format))),
		service.WithStack(cfg.Backup.Stack, cfg.Backup.Instance),
		service.WithBatchMax(cfg.Backup.BatchMax),
	}, nil
}

func runE(o interface {
	Complete(cmd *cobra.Command, args []string) error
	Validate(args []string) error
	Run(ctx context.Context, args []string) error
}) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := o.Complete(cmd, args); err != nil {
			return err
		}
		if err := o.Validate(args); err != nil {
			return err
		}
		return o.Run(cmd.Context(), args)
	}
}
