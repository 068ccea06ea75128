package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const checksumDelimiter = "%"

// checksumFold folds rows into one order independent value per column: the
// wrapping sum and the xor of the salted hashes of (backup id, column value).
type checksumFold struct {
	salt   string
	count  int64
	sums   []uint64
	xors   []uint64
	digest *xxhash.Digest
}

func newChecksumFold(salt string, columns int) *checksumFold {
	return &checksumFold{
		salt:   salt,
		sums:   make([]uint64, columns),
		xors:   make([]uint64, columns),
		digest: xxhash.New(),
	}
}

// add folds a row. values[0] is the backup id, the rest are the checksum columns.
func (f *checksumFold) add(values []sql.NullString) {
	id := values[0].String
	for i, v := range values[1:] {
		h := f.hash(id, v)
		f.sums[i] += h
		f.xors[i] ^= h
	}
	f.count++
}

func (f *checksumFold) hash(id string, v sql.NullString) uint64 {
	f.digest.Reset()
	_, _ = f.digest.WriteString(f.salt)
	_, _ = f.digest.WriteString("\x00")
	_, _ = f.digest.WriteString(id)
	if v.Valid {
		_, _ = f.digest.WriteString("\x00")
		_, _ = f.digest.WriteString(v.String)
	} else {
		_, _ = f.digest.WriteString("\x01")
	}
	return f.digest.Sum64()
}

func parseBackupID(v sql.NullString) (int64, error) {
	id, err := strconv.ParseInt(v.String, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("backup id %q is not an integer: %w", v.String, err)
	}
	return id, nil
}

func (f *checksumFold) columnValues() []string {
	out := make([]string, 0, len(f.sums))
	for i := range f.sums {
		out = append(out, fmt.Sprintf("%016x%016x", f.sums[i], f.xors[i]))
	}
	return out
}

// values returns the row count followed by the column values, or nothing when no row was folded.
func (f *checksumFold) values() []string {
	if f.count == 0 {
		return nil
	}
	return append([]string{strconv.FormatInt(f.count, 10)}, f.columnValues()...)
}
