package store

import (
	"context"

	"github.com/kubev2v/stack-migration/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Migratable() Migratable
	ACL() ACL
	StackStatus() StackStatus
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db          *gorm.DB
	migratable  Migratable
	acl         ACL
	stackStatus StackStatus
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:          db,
		migratable:  NewMigratable(db),
		acl:         NewACLStore(db),
		stackStatus: NewStackStatusStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Migratable() Migratable {
	return s.migratable
}

func (s *DataStore) ACL() ACL {
	return s.acl
}

func (s *DataStore) StackStatus() StackStatus {
	return s.stackStatus
}

// InitialMigration creates the schema from the models. Production databases are
// migrated with the SQL files of the migrate command instead.
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(model.Models()...)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
