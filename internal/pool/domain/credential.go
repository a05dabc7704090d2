// Package domain defines the credential pool model.
//
// Credentials are finite, non-shareable network-access resources partitioned
// into mutually exclusive groups. A credential is assigned to at most one
// subject at any time; claims against one partition never observe another's
// rows.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/handoff/internal/errors"
)

// Partition is a named, mutually exclusive subdivision of the credential pool.
type Partition string

const (
	// UserRequestablePartition holds credentials subjects may request themselves.
	UserRequestablePartition Partition = "user-requestable"
	// AutoAssignPartition holds credentials handed out automatically during
	// machine provisioning.
	AutoAssignPartition Partition = "auto-assign"
	// ReservedPartition holds credentials withheld from all claim paths.
	ReservedPartition Partition = "reserved"
)

// Credential domain errors.
var (
	// ErrCredentialNotFound indicates the credential does not exist.
	ErrCredentialNotFound = apperrors.Wrap(apperrors.ErrNotFound, "credential")

	// ErrCredentialAssigned indicates an operation that requires an unassigned
	// credential (e.g., a partition change) was attempted on an assigned one.
	ErrCredentialAssigned = apperrors.Wrap(apperrors.ErrInvalidInput, "credential is currently assigned")
)

// Credential is a unique assignable resource record. EncryptedPayload holds the
// connection material, encrypted at rest; it is decrypted only for a
// token-authorized fetch.
type Credential struct {
	ID               uuid.UUID
	Partition        Partition
	EncryptedPayload []byte
	AssignedTo       *uuid.UUID
	AssignedAt       *time.Time
	CreatedAt        time.Time
}

// IsAssigned reports whether the credential is currently assigned to a subject.
func (c *Credential) IsAssigned() bool {
	return c.AssignedTo != nil
}

// ValidPartition reports whether p is a known partition tag.
func ValidPartition(p Partition) bool {
	switch p {
	case UserRequestablePartition, AutoAssignPartition, ReservedPartition:
		return true
	}
	return false
}
