package model

import "time"

// Owner types of an access control list.
const (
	AclOwnerTypeEntity     = "ENTITY"
	AclOwnerTypeEvaluation = "EVALUATION"
)

type AccessControlList struct {
	ID        int64     `gorm:"primaryKey;column:id;autoIncrement:false" json:"id" xml:"id"`
	OwnerID   int64     `gorm:"column:owner_id;not null" json:"ownerId" xml:"ownerId"`
	OwnerType string    `gorm:"column:owner_type" json:"ownerType,omitempty" xml:"ownerType,omitempty"`
	Etag      string    `gorm:"column:etag;not null" json:"etag" xml:"etag"`
	CreatedOn time.Time `gorm:"column:created_on" json:"createdOn" xml:"createdOn"`
}

func (AccessControlList) TableName() string {
	return "acls"
}

func (a *AccessControlList) RecordType() RecordType {
	return RecordTypeACL
}

func (a *AccessControlList) BackupID() int64 {
	return a.ID
}

type ResourceAccess struct {
	ID          int64  `gorm:"primaryKey;column:id;autoIncrement:false" json:"id" xml:"id"`
	OwnerID     int64  `gorm:"column:owner_id;not null;index" json:"ownerId" xml:"ownerId"`
	PrincipalID int64  `gorm:"column:principal_id;not null" json:"principalId" xml:"principalId"`
	AccessType  string `gorm:"column:access_type;not null" json:"accessType" xml:"accessType"`
}

func (ResourceAccess) TableName() string {
	return "acl_resource_access"
}

func (r *ResourceAccess) RecordType() RecordType {
	return RecordTypeACLAccess
}

func (r *ResourceAccess) BackupID() int64 {
	return r.OwnerID
}
