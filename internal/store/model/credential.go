package model

import "time"

const (
	CredentialAlgorithmPBKDF2 = "PBKDF2_HMAC_SHA256"
	CredentialAlgorithmSHA256 = "SHA256"
)

type Credential struct {
	PrincipalID int64      `gorm:"primaryKey;column:principal_id;autoIncrement:false"`
	PassHash    string     `gorm:"column:pass_hash"`
	SecretKey   string     `gorm:"column:secret_key;not null"`
	Algorithm   string     `gorm:"column:algorithm;not null"`
	ExpiresOn   *time.Time `gorm:"column:expires_on"`
}

func (Credential) TableName() string {
	return "credentials"
}

func (c *Credential) RecordType() RecordType {
	return RecordTypeCredential
}

func (c *Credential) BackupID() int64 {
	return c.PrincipalID
}
