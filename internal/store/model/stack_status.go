package model

import "time"

type StatusState string

const (
	StatusReadWrite StatusState = "READ_WRITE"
	StatusReadOnly  StatusState = "READ_ONLY"
	StatusDown      StatusState = "DOWN"
)

// StackStatus is the single row describing whether this deployment accepts writes.
type StackStatus struct {
	ID             int64       `gorm:"primaryKey;column:id;autoIncrement:false" json:"-"`
	State          StatusState `gorm:"column:state;not null" json:"state"`
	CurrentMessage string      `gorm:"column:current_message" json:"currentMessage,omitempty"`
	UpdatedAt      time.Time   `gorm:"column:updated_at" json:"updatedAt"`
}

func (StackStatus) TableName() string {
	return "stack_status"
}
