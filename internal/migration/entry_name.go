package migration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kubev2v/stack-migration/internal/store/model"
)

const entryNameSeparator = "."

// legacyIndex is returned for entry names written without an index.
const legacyIndex = -1

// EntryName formats the container entry name of a segment: TYPE.INDEX.EXT.
func EntryName(t model.RecordType, index int, ext string) string {
	return fmt.Sprintf("%s.%d.%s", t, index, ext)
}

// ParseEntryName splits TYPE.INDEX.EXT or the legacy TYPE.EXT form.
// Legacy names report an index of -1.
func ParseEntryName(name string) (typeName string, index int, ext string, err error) {
	parts := strings.Split(name, entryNameSeparator)
	switch len(parts) {
	case 2:
		typeName, index, ext = parts[0], legacyIndex, parts[1]
	case 3:
		typeName, ext = parts[0], parts[2]
		index, err = strconv.Atoi(parts[1])
		if err != nil || index < 0 {
			return "", 0, "", fmt.Errorf("%w: %q has a malformed index", ErrInvalidEntryName, name)
		}
	default:
		return "", 0, "", fmt.Errorf("%w: %q", ErrInvalidEntryName, name)
	}

	if typeName == "" || ext == "" {
		return "", 0, "", fmt.Errorf("%w: %q", ErrInvalidEntryName, name)
	}
	return typeName, index, ext, nil
}

// TypeOfEntry returns the record type encoded in a container entry name.
func (r *Registry) TypeOfEntry(name string) (model.RecordType, error) {
	typeName, _, _, err := ParseEntryName(name)
	if err != nil {
		return "", err
	}
	e, err := r.Lookup(model.RecordType(typeName))
	if err != nil {
		return "", err
	}
	return e.Type, nil
}
