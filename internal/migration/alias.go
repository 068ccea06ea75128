package migration

import "strings"

// AliasMode selects the label written for each row inside a segment payload.
type AliasMode string

const (
	// AliasTableName labels rows with the database table name. Older containers use it.
	AliasTableName AliasMode = "TABLE_NAME"
	// AliasTypeName labels rows with the record type name.
	AliasTypeName AliasMode = "TYPE_NAME"

	legacyAliasTypeName = "MIGRATION_TYPE_NAME"
)

func ParseAliasMode(s string) (AliasMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(AliasTableName):
		return AliasTableName, nil
	case string(AliasTypeName), legacyAliasTypeName:
		return AliasTypeName, nil
	default:
		return "", newErrInvalidArgument("unknown alias mode %q", s)
	}
}

func (m AliasMode) Validate() error {
	switch m {
	case AliasTableName, AliasTypeName:
		return nil
	default:
		return newErrInvalidArgument("unknown alias mode %q", string(m))
	}
}

// other returns the alternative mode, used as a fallback when resolving aliases.
func (m AliasMode) other() AliasMode {
	if m == AliasTableName {
		return AliasTypeName
	}
	return AliasTableName
}

func (m AliasMode) String() string {
	return string(m)
}
