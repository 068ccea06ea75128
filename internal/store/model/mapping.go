package model

import "fmt"

// TableMapping binds a RecordType to its table and to the column metadata
// needed to back it up, restore it and checksum it.
type TableMapping struct {
	Type            RecordType
	Table           string
	BackupIDColumn  string
	OrderBy         string
	ChecksumColumns []string
	Secondary       []RecordType

	newRecord func() Record
	newSlice  func() any
	records   func(slice any) []Record
	toSlice   func(records []Record) (any, error)
}

type tabler interface {
	TableName() string
}

func NewTableMapping[T any, PT interface {
	*T
	Record
}](backupIDColumn, orderBy string, checksumColumns []string, secondary ...RecordType) TableMapping {
	var proto PT = new(T)

	table := fmt.Sprintf("%ss", proto.RecordType())
	if t, ok := any(*proto).(tabler); ok {
		table = t.TableName()
	}

	return TableMapping{
		Type:            proto.RecordType(),
		Table:           table,
		BackupIDColumn:  backupIDColumn,
		OrderBy:         orderBy,
		ChecksumColumns: checksumColumns,
		Secondary:       secondary,
		newRecord: func() Record {
			return PT(new(T))
		},
		newSlice: func() any {
			return &[]T{}
		},
		records: func(slice any) []Record {
			rows, ok := slice.(*[]T)
			if !ok {
				return nil
			}
			out := make([]Record, 0, len(*rows))
			for i := range *rows {
				out = append(out, PT(&(*rows)[i]))
			}
			return out
		},
		toSlice: func(records []Record) (any, error) {
			rows := make([]T, 0, len(records))
			for _, r := range records {
				p, ok := r.(PT)
				if !ok {
					return nil, fmt.Errorf("record of type %s cannot be stored in table %s", r.RecordType(), table)
				}
				rows = append(rows, *p)
			}
			return &rows, nil
		},
	}
}

// NewRecord returns a pointer to a zero value of the mapped model.
func (m TableMapping) NewRecord() Record {
	return m.newRecord()
}

// NewSlice returns a pointer to an empty slice of the mapped model, suitable as a gorm destination.
func (m TableMapping) NewSlice() any {
	return m.newSlice()
}

// Records converts a slice obtained from NewSlice into records.
func (m TableMapping) Records(slice any) []Record {
	return m.records(slice)
}

// ToSlice converts records into a pointer to a typed slice, suitable as a gorm value.
func (m TableMapping) ToSlice(records []Record) (any, error) {
	return m.toSlice(records)
}

// Mappings lists every migratable table in migration order. CHANGE stays last:
// restoring changes triggers downstream processing of the objects they point to.
var Mappings = []TableMapping{
	NewTableMapping[Node]("id", "id", []string{"etag", "parent_id", "current_rev_num"}, RecordTypeNodeRevision),
	NewTableMapping[NodeRevision]("owner_id", "owner_id, revision_number", []string{"revision_number", "label", "modified_by"}),
	NewTableMapping[AccessControlList]("id", "id", []string{"etag", "owner_id", "owner_type"}, RecordTypeACLAccess),
	NewTableMapping[ResourceAccess]("owner_id", "owner_id, id", []string{"id", "principal_id", "access_type"}),
	NewTableMapping[Credential]("principal_id", "principal_id", []string{"pass_hash", "secret_key", "algorithm"}),
	NewTableMapping[Change]("change_num", "change_num", []string{"object_id", "object_type", "object_etag", "change_type"}),
}

var mappingsByType = func() map[RecordType]TableMapping {
	m := make(map[RecordType]TableMapping, len(Mappings))
	for _, mapping := range Mappings {
		m[mapping.Type] = mapping
	}
	return m
}()

func MappingFor(t RecordType) (TableMapping, bool) {
	m, ok := mappingsByType[t]
	return m, ok
}

// Models returns a zero value of every migratable model plus the stack status,
// in an order suitable for schema creation.
func Models() []any {
	models := make([]any, 0, len(Mappings)+1)
	for _, m := range Mappings {
		models = append(models, m.NewRecord())
	}
	return append(models, &StackStatus{})
}
