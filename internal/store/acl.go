package store

import (
	"context"
	"fmt"

	"github.com/kubev2v/stack-migration/internal/store/model"
	"gorm.io/gorm"
)

type ACL interface {
	// RepairOwnerType sets the owner type of the given acls when it is missing
	// and the owner is a node. It returns the number of repaired acls.
	RepairOwnerType(ctx context.Context, ids []int64) (int64, error)
}

type ACLStore struct {
	db *gorm.DB
}

var _ ACL = (*ACLStore)(nil)

func NewACLStore(db *gorm.DB) ACL {
	return &ACLStore{db: db}
}

func (s *ACLStore) RepairOwnerType(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	db := s.getDB(ctx)
	nodes := db.Session(&gorm.Session{NewDB: true}).Model(&model.Node{}).Select("id")

	result := db.Model(&model.AccessControlList{}).
		Where("id IN ?", ids).
		Where("(owner_type IS NULL OR owner_type = '')").
		Where("owner_id IN (?)", nodes).
		Update("owner_type", model.AclOwnerTypeEntity)
	if result.Error != nil {
		return 0, fmt.Errorf("repairing acl owner type: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *ACLStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
