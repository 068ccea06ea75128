package migration

import (
	"context"
	"strings"

	"github.com/kubev2v/stack-migration/internal/store/model"
)

// ChecksumDelimiter joins the per-column values of a range checksum.
const ChecksumDelimiter = "%"

// ChecksumSource computes per-column digests inside the deployment holding the data.
type ChecksumSource interface {
	// ColumnChecksums returns one salted value per significant column of the
	// rows whose backup id is in [minID, maxID), or nothing when no row matches.
	ColumnChecksums(ctx context.Context, t model.RecordType, salt string, minID, maxID int64) ([]string, error)
	TypeCount(ctx context.Context, t model.RecordType) (model.TypeCount, error)
}

type RangeChecksumCalculator struct {
	registry *Registry
	source   ChecksumSource
}

func NewRangeChecksumCalculator(registry *Registry, source ChecksumSource) *RangeChecksumCalculator {
	return &RangeChecksumCalculator{registry: registry, source: source}
}

// RangeChecksum returns the checksum of the rows of type t with a backup id in
// [minID, maxID). An empty range yields the empty string. The result is
// reproducible for identical data and salt.
func (c *RangeChecksumCalculator) RangeChecksum(ctx context.Context, t model.RecordType, salt string, minID, maxID int64) (string, error) {
	if _, err := c.registry.Lookup(t); err != nil {
		return "", err
	}
	if minID > maxID {
		return "", newErrInvalidArgument("minimum id %d is greater than maximum id %d", minID, maxID)
	}
	if minID == maxID {
		return "", nil
	}

	values, err := c.source.ColumnChecksums(ctx, t, salt, minID, maxID)
	if err != nil {
		return "", err
	}
	return strings.Join(values, ChecksumDelimiter), nil
}

// TypeChecksum returns the unsalted checksum over every row of type t. It is
// only meaningful while the stack rejects writes; callers enforce that.
func (c *RangeChecksumCalculator) TypeChecksum(ctx context.Context, t model.RecordType) (string, error) {
	if _, err := c.registry.Lookup(t); err != nil {
		return "", err
	}

	count, err := c.source.TypeCount(ctx, t)
	if err != nil {
		return "", err
	}
	if count.Count == 0 || count.MinID == nil || count.MaxID == nil {
		return "", nil
	}
	return c.RangeChecksum(ctx, t, "", *count.MinID, *count.MaxID+1)
}
