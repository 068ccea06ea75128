package model

import "time"

type Node struct {
	ID               int64     `gorm:"primaryKey;column:id;autoIncrement:false" json:"id" xml:"id"`
	ParentID         *int64    `gorm:"column:parent_id" json:"parentId,omitempty" xml:"parentId,omitempty"`
	Name             string    `gorm:"column:name;not null" json:"name" xml:"name"`
	NodeType         string    `gorm:"column:node_type;not null" json:"nodeType" xml:"nodeType"`
	Etag             string    `gorm:"column:etag;not null" json:"etag" xml:"etag"`
	CreatedBy        int64     `gorm:"column:created_by" json:"createdBy" xml:"createdBy"`
	CreatedOn        time.Time `gorm:"column:created_on" json:"createdOn" xml:"createdOn"`
	CurrentRevNumber *int64    `gorm:"column:current_rev_num" json:"currentRevNumber,omitempty" xml:"currentRevNumber,omitempty"`
}

func (Node) TableName() string {
	return "nodes"
}

func (n *Node) RecordType() RecordType {
	return RecordTypeNode
}

func (n *Node) BackupID() int64 {
	return n.ID
}

type NodeRevision struct {
	OwnerID        int64     `gorm:"primaryKey;column:owner_id;autoIncrement:false" json:"ownerId" xml:"ownerId"`
	RevisionNumber int64     `gorm:"primaryKey;column:revision_number;autoIncrement:false" json:"revisionNumber" xml:"revisionNumber"`
	Label          string    `gorm:"column:label" json:"label" xml:"label"`
	Comment        string    `gorm:"column:comment" json:"comment,omitempty" xml:"comment,omitempty"`
	ModifiedBy     int64     `gorm:"column:modified_by" json:"modifiedBy" xml:"modifiedBy"`
	ModifiedOn     time.Time `gorm:"column:modified_on" json:"modifiedOn" xml:"modifiedOn"`
	FileHandleID   *int64    `gorm:"column:file_handle_id" json:"fileHandleId,omitempty" xml:"fileHandleId,omitempty"`
}

func (NodeRevision) TableName() string {
	return "node_revisions"
}

func (r *NodeRevision) RecordType() RecordType {
	return RecordTypeNodeRevision
}

func (r *NodeRevision) BackupID() int64 {
	return r.OwnerID
}
