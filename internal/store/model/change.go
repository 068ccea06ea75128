package model

import "time"

const (
	ChangeTypeCreate = "CREATE"
	ChangeTypeUpdate = "UPDATE"
	ChangeTypeDelete = "DELETE"
)

type Change struct {
	ChangeNum  int64     `gorm:"primaryKey;column:change_num;autoIncrement:false" json:"changeNumber" xml:"changeNumber"`
	ObjectID   int64     `gorm:"column:object_id;not null" json:"objectId" xml:"objectId"`
	ObjectType string    `gorm:"column:object_type;not null" json:"objectType" xml:"objectType"`
	ObjectEtag string    `gorm:"column:object_etag" json:"objectEtag,omitempty" xml:"objectEtag,omitempty"`
	ChangeType string    `gorm:"column:change_type;not null" json:"changeType" xml:"changeType"`
	TimeStamp  time.Time `gorm:"column:time_stamp" json:"timeStamp" xml:"timeStamp"`
}

func (Change) TableName() string {
	return "changes"
}

func (c *Change) RecordType() RecordType {
	return RecordTypeChange
}

func (c *Change) BackupID() int64 {
	return c.ChangeNum
}
