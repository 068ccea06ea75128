package service

import (
	"context"
	"fmt"

	"github.com/kubev2v/stack-migration/internal/events"
	"github.com/kubev2v/stack-migration/internal/store"
	"github.com/kubev2v/stack-migration/internal/store/model"
	"go.uber.org/zap"
)

// RestoreListener is called with every batch of its type once the batch is committed.
type RestoreListener interface {
	Type() model.RecordType
	AfterRestore(ctx context.Context, batch []model.Record) error
}

// Publisher queues a payload for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, kind string, payload any) error
}

// AclOwnerTypeListener fills the owner type of restored node acls written by
// deployments that did not record it.
type AclOwnerTypeListener struct {
	store store.Store
}

func NewAclOwnerTypeListener(s store.Store) *AclOwnerTypeListener {
	return &AclOwnerTypeListener{store: s}
}

func (l *AclOwnerTypeListener) Type() model.RecordType {
	return model.RecordTypeACL
}

func (l *AclOwnerTypeListener) AfterRestore(ctx context.Context, batch []model.Record) error {
	ids := make([]int64, 0, len(batch))
	for _, r := range batch {
		acl, ok := r.(*model.AccessControlList)
		if !ok || acl.OwnerType != "" {
			continue
		}
		ids = append(ids, acl.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	repaired, err := l.store.ACL().RepairOwnerType(ctx, ids)
	if err != nil {
		return err
	}
	if repaired > 0 {
		zap.S().Named("acl_owner_type_listener").Infow("repaired acl owner type", "count", repaired)
	}
	return nil
}

// ChangeBroadcastListener announces restored changes so the objects they point to get processed again.
type ChangeBroadcastListener struct {
	publisher Publisher
}

func NewChangeBroadcastListener(p Publisher) *ChangeBroadcastListener {
	return &ChangeBroadcastListener{publisher: p}
}

func (l *ChangeBroadcastListener) Type() model.RecordType {
	return model.RecordTypeChange
}

func (l *ChangeBroadcastListener) AfterRestore(ctx context.Context, batch []model.Record) error {
	for _, r := range batch {
		change, ok := r.(*model.Change)
		if !ok {
			continue
		}
		event := events.ChangeEvent{
			ChangeNumber: change.ChangeNum,
			ObjectID:     change.ObjectID,
			ObjectType:   change.ObjectType,
			ObjectEtag:   change.ObjectEtag,
			ChangeType:   change.ChangeType,
			TimeStamp:    change.TimeStamp,
		}
		if err := l.publisher.Publish(ctx, events.ChangeMessageKind, event); err != nil {
			return fmt.Errorf("broadcasting change %d: %w", change.ChangeNum, err)
		}
	}
	return nil
}
