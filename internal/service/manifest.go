package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kubev2v/stack-migration/internal/blob"
	"github.com/kubev2v/stack-migration/internal/migration"
	"github.com/kubev2v/stack-migration/internal/store/model"
)

const (
	manifestVersion   = 1
	manifestSuffix    = ".manifest.json"
	manifestMediaType = "application/json"
)

// Manifest describes a backup container. It is stored next to the container.
type Manifest struct {
	Version        int                 `json:"version"`
	Key            string              `json:"key"`
	Stack          string              `json:"stack,omitempty"`
	Instance       string              `json:"instance,omitempty"`
	Type           model.RecordType    `json:"type"`
	AliasType      migration.AliasMode `json:"aliasType"`
	BatchSize      int64               `json:"batchSize"`
	Format         string              `json:"format,omitempty"`
	MinimumID      *int64              `json:"minimumId,omitempty"`
	MaximumID      *int64              `json:"maximumId,omitempty"`
	SecondaryTypes []model.RecordType  `json:"secondaryTypes,omitempty"`
	Rows           int64               `json:"rows"`
	Size           int64               `json:"size"`
	Sha256         string              `json:"sha256,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func manifestKey(key string) string {
	return key + manifestSuffix
}

// HasRange reports whether the manifest bounds the ids of the backed up rows.
func (m *Manifest) HasRange() bool {
	return m.MinimumID != nil && m.MaximumID != nil
}

// Types returns the backed up type followed by the secondary types included in the container.
func (m *Manifest) Types() []model.RecordType {
	return append([]model.RecordType{m.Type}, m.SecondaryTypes...)
}

func putManifest(ctx context.Context, store blob.Store, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest of %s: %w", m.Key, err)
	}
	return store.Put(ctx, manifestKey(m.Key), bytes.NewReader(data), int64(len(data)), manifestMediaType)
}

// getManifest returns the manifest of the backup stored under key, or nil when it has none.
func getManifest(ctx context.Context, store blob.Store, key string) (*Manifest, error) {
	rc, err := store.Get(ctx, manifestKey(key))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest of %s: %w", key, err)
	}
	return &m, nil
}

// synthesizeManifest describes a backup without manifest from the restore request.
func synthesizeManifest(req *RestoreTypeRequest) *Manifest {
	return &Manifest{
		Version:   manifestVersion,
		Key:       req.BackupFileKey,
		Type:      req.Type,
		AliasType: req.AliasType,
		BatchSize: req.BatchSize,
		MinimumID: req.MinimumRowID,
		MaximumID: req.MaximumRowID,
	}
}
