package model

import "fmt"

// RecordType names a kind of migratable row. Types are written into container
// entry names, so values must never change once released.
type RecordType string

const (
	RecordTypeNode         RecordType = "NODE"
	RecordTypeNodeRevision RecordType = "NODE_REVISION"
	RecordTypeACL          RecordType = "ACL"
	RecordTypeACLAccess    RecordType = "ACL_ACCESS"
	RecordTypeCredential   RecordType = "CREDENTIAL"
	RecordTypeChange       RecordType = "CHANGE"
)

func (t RecordType) String() string {
	return string(t)
}

// Record is a row of a migratable table in its live (database) form.
type Record interface {
	RecordType() RecordType
	// BackupID is the value of the type's backup id column. Secondary rows
	// return the id of the primary row owning them.
	BackupID() int64
}

type TypeCount struct {
	Type  RecordType `json:"type"`
	Count int64      `json:"count"`
	MinID *int64     `json:"minimumId,omitempty"`
	MaxID *int64     `json:"maximumId,omitempty"`
}

// RangeChecksum is the checksum of one bin of a batched checksum request.
type RangeChecksum struct {
	BinNumber int64  `json:"binNumber"`
	Count     int64  `json:"count"`
	MinID     int64  `json:"minimumId"`
	MaxID     int64  `json:"maximumId"`
	Checksum  string `json:"checksum"`
}

type IdRange struct {
	MinID int64 `json:"minimumId"`
	MaxID int64 `json:"maximumId"`
}

func (r IdRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.MinID, r.MaxID)
}
