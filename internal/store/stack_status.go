package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kubev2v/stack-migration/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const stackStatusID = 1

type StackStatus interface {
	// Get returns the stack status. A stack that never recorded one is read-write.
	Get(ctx context.Context) (*model.StackStatus, error)
	Set(ctx context.Context, state model.StatusState, message string) (*model.StackStatus, error)
}

type StackStatusStore struct {
	db *gorm.DB
}

var _ StackStatus = (*StackStatusStore)(nil)

func NewStackStatusStore(db *gorm.DB) StackStatus {
	return &StackStatusStore{db: db}
}

func (s *StackStatusStore) Get(ctx context.Context) (*model.StackStatus, error) {
	var status model.StackStatus
	result := s.getDB(ctx).First(&status, stackStatusID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return &model.StackStatus{ID: stackStatusID, State: model.StatusReadWrite}, nil
		}
		return nil, fmt.Errorf("querying stack status: %w", result.Error)
	}
	return &status, nil
}

func (s *StackStatusStore) Set(ctx context.Context, state model.StatusState, message string) (*model.StackStatus, error) {
	status := model.StackStatus{
		ID:             stackStatusID,
		State:          state,
		CurrentMessage: message,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.getDB(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&status).Error; err != nil {
		return nil, fmt.Errorf("updating stack status: %w", err)
	}
	return &status, nil
}

func (s *StackStatusStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
