package migration

import (
	"strings"
	"time"

	"github.com/kubev2v/stack-migration/internal/store/model"
)

// Translator converts a record between its live form and its backup form.
// Implementations must be pure.
type Translator interface {
	// NewBackup returns a pointer to a zero-valued backup row. Decoders fill it.
	NewBackup() any
	ToBackup(record model.Record) (any, error)
	FromBackup(backup any) (model.Record, error)
	// IgnoreOnRestore reports backup rows dropped on restore.
	IgnoreOnRestore(backup any) bool
}

type translator[L, B any, PL interface {
	*L
	model.Record
}] struct {
	toBackup   func(PL) *B
	fromBackup func(*B) PL
	ignore     func(*B) bool
}

var _ Translator = (*translator[model.Node, model.Node, *model.Node])(nil)

// NewTranslator builds a Translator from a pair of conversion functions.
// ignore may be nil.
func NewTranslator[L, B any, PL interface {
	*L
	model.Record
}](toBackup func(PL) *B, fromBackup func(*B) PL, ignore func(*B) bool) Translator {
	return &translator[L, B, PL]{toBackup: toBackup, fromBackup: fromBackup, ignore: ignore}
}

// Identity returns a Translator whose backup form is the live form.
func Identity[L any, PL interface {
	*L
	model.Record
}](ignore func(*L) bool) Translator {
	return NewTranslator[L, L, PL](
		func(r PL) *L {
			c := *r
			return &c
		},
		func(b *L) PL {
			c := *b
			return PL(&c)
		},
		ignore,
	)
}

func (t *translator[L, B, PL]) NewBackup() any {
	return new(B)
}

func (t *translator[L, B, PL]) ToBackup(record model.Record) (any, error) {
	live, ok := record.(PL)
	if !ok {
		return nil, newErrInvalidArgument("cannot translate %T to backup", record)
	}
	return t.toBackup(live), nil
}

func (t *translator[L, B, PL]) FromBackup(backup any) (model.Record, error) {
	b, ok := backup.(*B)
	if !ok || b == nil {
		return nil, newErrInvalidArgument("cannot translate %T from backup", backup)
	}
	return t.fromBackup(b), nil
}

func (t *translator[L, B, PL]) IgnoreOnRestore(backup any) bool {
	if t.ignore == nil {
		return false
	}
	b, ok := backup.(*B)
	if !ok {
		return false
	}
	return t.ignore(b)
}

// CredentialBackup is the backup form of a credential. Backups taken before the
// algorithm column existed carry no algorithm.
type CredentialBackup struct {
	PrincipalID int64      `json:"principalId" xml:"principalId"`
	PassHash    string     `json:"passHash,omitempty" xml:"passHash,omitempty"`
	SecretKey   string     `json:"secretKey" xml:"secretKey"`
	Algorithm   string     `json:"algorithm,omitempty" xml:"algorithm,omitempty"`
	ExpiresOn   *time.Time `json:"expiresOn,omitempty" xml:"expiresOn,omitempty"`
}

const pbkdf2HashPrefix = "$pbkdf2"

func credentialToBackup(c *model.Credential) *CredentialBackup {
	return &CredentialBackup{
		PrincipalID: c.PrincipalID,
		PassHash:    c.PassHash,
		SecretKey:   c.SecretKey,
		Algorithm:   c.Algorithm,
		ExpiresOn:   c.ExpiresOn,
	}
}

func credentialFromBackup(b *CredentialBackup) *model.Credential {
	algorithm := b.Algorithm
	if algorithm == "" {
		algorithm = model.CredentialAlgorithmSHA256
		if strings.HasPrefix(b.PassHash, pbkdf2HashPrefix) {
			algorithm = model.CredentialAlgorithmPBKDF2
		}
	}
	return &model.Credential{
		PrincipalID: b.PrincipalID,
		PassHash:    b.PassHash,
		SecretKey:   b.SecretKey,
		Algorithm:   algorithm,
		ExpiresOn:   b.ExpiresOn,
	}
}

// retiredChangeObjectTypes are object types whose tables no longer exist.
var retiredChangeObjectTypes = map[string]struct{}{
	"EVALUATION":            {},
	"EVALUATION_SUBMISSION": {},
	"FAVORITE":              {},
}

func isRetiredChange(c *model.Change) bool {
	_, retired := retiredChangeObjectTypes[c.ObjectType]
	return retired
}

// DefaultTranslators returns the translator of every migratable type.
func DefaultTranslators() map[model.RecordType]Translator {
	return map[model.RecordType]Translator{
		model.RecordTypeNode:         Identity[model.Node](nil),
		model.RecordTypeNodeRevision: Identity[model.NodeRevision](nil),
		model.RecordTypeACL:          Identity[model.AccessControlList](nil),
		model.RecordTypeACLAccess:    Identity[model.ResourceAccess](nil),
		model.RecordTypeCredential:   NewTranslator(credentialToBackup, credentialFromBackup, nil),
		model.RecordTypeChange:       Identity[model.Change](isRetiredChange),
	}
}
