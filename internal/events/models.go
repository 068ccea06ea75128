package events

import "time"

const (
	ChangeMessageKind string = "stack.migration.events.change"
	defaultTopic      string = "stack.migration.changes"
	messageSource     string = "stack.migration"
)

// Message is the envelope handed to a Writer.
type Message struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
	Data   []byte    `json:"data"`
}

// ChangeEvent announces a restored change so downstream consumers can process the object it points to.
type ChangeEvent struct {
	ChangeNumber int64     `json:"changeNumber"`
	ObjectID     int64     `json:"objectId"`
	ObjectType   string    `json:"objectType"`
	ObjectEtag   string    `json:"objectEtag,omitempty"`
	ChangeType   string    `json:"changeType"`
	TimeStamp    time.Time `json:"timeStamp"`
}
