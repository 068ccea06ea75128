package service

import (
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store/model"
)

// BackupTypeRangeRequest backs up the rows of Type whose backup id is in [MinimumID, MaximumID).
type BackupTypeRangeRequest struct {
	Type                  model.RecordType    `json:"type" validate:"required,record_type"`
	AliasType             migration.AliasMode `json:"aliasType" validate:"required,alias_mode"`
	BatchSize             int64               `json:"batchSize" validate:"gt=0"`
	MinimumID             int64               `json:"minimumId" validate:"gte=0"`
	MaximumID             int64               `json:"maximumId" validate:"gtefield=MinimumID"`
	IncludeSecondaryTypes bool                `json:"includeSecondaryTypes,omitempty"`
}

type BackupTypeResponse struct {
	BackupFileKey string `json:"backupFileKey"`
}

// RestoreTypeRequest restores a backup. The optional id range bounds the rows
// deleted before restoring when the backup has no manifest.
type RestoreTypeRequest struct {
	Type          model.RecordType    `json:"type" validate:"required,record_type"`
	AliasType     migration.AliasMode `json:"aliasType" validate:"required,alias_mode"`
	BatchSize     int64               `json:"batchSize" validate:"gt=0"`
	BackupFileKey string              `json:"backupFileKey" validate:"required,blob_key"`
	MinimumRowID  *int64              `json:"minimumRowId,omitempty" validate:"omitempty,gte=0"`
	MaximumRowID  *int64              `json:"maximumRowId,omitempty" validate:"omitempty,gte=0"`
}

type RestoreTypeResponse struct {
	RestoredRowCount int64 `json:"restoredRowCount"`
}

type TypeCountsRequest struct {
	Types []model.RecordType `json:"types" validate:"required,min=1,dive,record_type"`
}

type TypeCounts struct {
	Counts []model.TypeCount `json:"counts"`
}

type RangeChecksumRequest struct {
	Type      model.RecordType `json:"type" validate:"required,record_type"`
	Salt      string           `json:"salt" validate:"required"`
	MinimumID int64            `json:"minimumId" validate:"gte=0"`
	MaximumID int64            `json:"maximumId" validate:"gtefield=MinimumID"`
}

type MigrationRangeChecksum struct {
	Type      model.RecordType `json:"type"`
	MinimumID int64            `json:"minimumId"`
	MaximumID int64            `json:"maximumId"`
	Checksum  string           `json:"checksum"`
}

type TypeChecksumRequest struct {
	Type model.RecordType `json:"type" validate:"required,record_type"`
}

type MigrationTypeChecksum struct {
	Type     model.RecordType `json:"type"`
	Checksum string           `json:"checksum"`
}

type BatchChecksumRequest struct {
	Type      model.RecordType `json:"type" validate:"required,record_type"`
	Salt      string           `json:"salt" validate:"required"`
	MinimumID int64            `json:"minimumId" validate:"gte=0"`
	MaximumID int64            `json:"maximumId" validate:"gtefield=MinimumID"`
	BatchSize int64            `json:"batchSize" validate:"gt=0"`
}

type BatchChecksumResponse struct {
	Type      model.RecordType      `json:"type"`
	Checksums []model.RangeChecksum `json:"checksums"`
}

type CalculateOptimalRangeRequest struct {
	Type                model.RecordType `json:"type" validate:"required,record_type"`
	MinimumID           int64            `json:"minimumId" validate:"gte=0"`
	MaximumID           int64            `json:"maximumId" validate:"gtefield=MinimumID"`
	OptimalRowsPerRange int64            `json:"optimalRowsPerRange" validate:"gt=0"`
}

type CalculateOptimalRangeResponse struct {
	Type   model.RecordType `json:"type"`
	Ranges []model.IdRange  `json:"ranges"`
}

type StackStatusRequest struct {
	State          model.StatusState `json:"state" validate:"required,stack_state"`
	CurrentMessage string            `json:"currentMessage,omitempty"`
}
