package migration

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/kubev2v/stack-migration/internal/store/model"
)

// Entry is a registered record type.
type Entry struct {
	Type       model.RecordType
	Table      string
	Secondary  []model.RecordType
	Translator Translator

	mapping model.TableMapping
	empty   any
}

// Alias returns the label used for rows of this type under the given mode.
func (e *Entry) Alias(mode AliasMode) string {
	if mode == AliasTableName {
		return e.Table
	}
	return string(e.Type)
}

// IsEmpty reports whether a decoded backup row carries no data.
func (e *Entry) IsEmpty(backup any) bool {
	return reflect.DeepEqual(backup, e.empty)
}

// Registry maps type names and table names to record types. It is built once
// and read-only afterwards.
type Registry struct {
	order   []model.RecordType
	byType  map[model.RecordType]*Entry
	byTable map[string]*Entry
}

func NewRegistry(mappings []model.TableMapping, translators map[model.RecordType]Translator) (*Registry, error) {
	r := &Registry{
		byType:  make(map[model.RecordType]*Entry, len(mappings)),
		byTable: make(map[string]*Entry, len(mappings)),
	}

	for _, m := range mappings {
		if _, found := r.byType[m.Type]; found {
			return nil, fmt.Errorf("record type %s registered twice", m.Type)
		}
		if _, found := r.byTable[m.Table]; found {
			return nil, fmt.Errorf("table %s registered twice", m.Table)
		}
		tr, found := translators[m.Type]
		if !found {
			return nil, fmt.Errorf("no translator for record type %s", m.Type)
		}

		e := &Entry{
			Type:       m.Type,
			Table:      m.Table,
			Secondary:  slices.Clone(m.Secondary),
			Translator: tr,
			mapping:    m,
			empty:      tr.NewBackup(),
		}
		r.order = append(r.order, m.Type)
		r.byType[m.Type] = e
		r.byTable[m.Table] = e
	}

	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(model.Mappings, DefaultTranslators())
	if err != nil {
		panic(err)
	}
	return r
})

// DefaultRegistry returns the registry of every migratable type.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

func (r *Registry) Lookup(t model.RecordType) (*Entry, error) {
	if e, found := r.byType[t]; found {
		return e, nil
	}
	return nil, newErrUnknownType(string(t))
}

func (r *Registry) Has(t model.RecordType) bool {
	_, found := r.byType[t]
	return found
}

// Resolve finds the entry labelled name under mode. Names written under the
// other mode are accepted as well, so legacy containers stay readable.
func (r *Registry) Resolve(name string, mode AliasMode) (*Entry, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	for _, m := range []AliasMode{mode, mode.other()} {
		if e, found := r.resolve(name, m); found {
			return e, nil
		}
	}
	return nil, newErrUnknownType(name)
}

func (r *Registry) resolve(name string, mode AliasMode) (*Entry, bool) {
	if mode == AliasTableName {
		e, found := r.byTable[name]
		return e, found
	}
	e, found := r.byType[model.RecordType(name)]
	return e, found
}

// PrototypeFor returns a zero-valued live record of the given type.
func (r *Registry) PrototypeFor(t model.RecordType) (model.Record, error) {
	e, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	return e.mapping.NewRecord(), nil
}

func (r *Registry) SecondaryTypesOf(t model.RecordType) ([]model.RecordType, error) {
	e, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.Secondary), nil
}

// Types returns every registered type in registration order.
func (r *Registry) Types() []model.RecordType {
	return slices.Clone(r.order)
}

// PrimaryTypes returns the registered types that are not the secondary of another type.
func (r *Registry) PrimaryTypes() []model.RecordType {
	secondary := map[model.RecordType]struct{}{}
	for _, e := range r.byType {
		for _, s := range e.Secondary {
			secondary[s] = struct{}{}
		}
	}

	primary := make([]model.RecordType, 0, len(r.order))
	for _, t := range r.order {
		if _, found := secondary[t]; !found {
			primary = append(primary, t)
		}
	}
	return primary
}
