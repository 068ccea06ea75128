package cli

import (
	"context"
	"strings"

	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"github.com/spf13/cobra"
)

type TypesOptions struct {
	GlobalOptions
}

type typeInfo struct {
	Type           model.RecordType   `json:"type"`
	Primary        bool               `json:"primary"`
	SecondaryTypes []model.RecordType `json:"secondaryTypes,omitempty"`
}

func DefaultTypesOptions() *TypesOptions {
	return &TypesOptions{
		GlobalOptions: DefaultGlobalOptions(),
	}
}

func NewCmdTypes() *cobra.Command {
	o := DefaultTypesOptions()
	cmd := &cobra.Command{
		Use:          "types [TYPE]",
		Short:        "List the migratable types in migration order.",
		Args:         cobra.MaximumNArgs(1),
		RunE:         runE(o),
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

// Run lists the registry without touching the database.
func (o *TypesOptions) Run(ctx context.Context, args []string) error {
	registry := migration.DefaultRegistry()
	primary := map[model.RecordType]bool{}
	for _, t := range registry.PrimaryTypes() {
		primary[t] = true
	}

	types := registry.Types()
	if len(args) == 1 {
		types = []model.RecordType{model.RecordType(strings.ToUpper(args[0]))}
	}

	infos := make([]typeInfo, 0, len(types))
	for _, t := range types {
		secondary, err := registry.SecondaryTypesOf(t)
		if err != nil {
			return err
		}
		infos = append(infos, typeInfo{Type: t, Primary: primary[t], SecondaryTypes: secondary})
	}
	return o.print(infos)
}
