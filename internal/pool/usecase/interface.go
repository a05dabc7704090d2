// Package usecase implements business logic for the credential pool.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// CredentialRepository defines credential persistence operations. Mutating
// operations run inside a transaction opened by the caller (the allocation
// coordinator); the repository picks it up from the context.
type CredentialRepository interface {
	// Create inserts a new unassigned credential.
	Create(ctx context.Context, credential *poolDomain.Credential) error

	// Get retrieves a credential by ID. Returns
	// poolDomain.ErrCredentialNotFound if no credential matches.
	Get(ctx context.Context, credentialID uuid.UUID) (*poolDomain.Credential, error)

	// ClaimUnassigned locks and assigns up to count unassigned credentials in
	// the partition, oldest first, skipping rows locked by concurrent claims.
	// It may return fewer than count; the use case decides what that means.
	ClaimUnassigned(
		ctx context.Context,
		partition poolDomain.Partition,
		count int,
		subject uuid.UUID,
		assignedAt time.Time,
	) ([]*poolDomain.Credential, error)

	// Release clears the assignment. Returns errors.ErrAlreadyReleased if the
	// credential is unassigned, poolDomain.ErrCredentialNotFound if missing.
	Release(ctx context.Context, credentialID uuid.UUID) error

	// ReleaseAllForSubject clears every assignment held by the subject and
	// returns how many credentials were released.
	ReleaseAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error)

	// UpdatePartition retags an unassigned credential. Returns
	// poolDomain.ErrCredentialAssigned if currently assigned.
	UpdatePartition(ctx context.Context, credentialID uuid.UUID, partition poolDomain.Partition) error

	// List retrieves credentials in a partition, oldest first, with pagination.
	List(ctx context.Context, partition poolDomain.Partition, offset, limit int) ([]*poolDomain.Credential, error)

	// CountUnassigned returns how many credentials in the partition are free.
	CountUnassigned(ctx context.Context, partition poolDomain.Partition) (int64, error)
}

// PoolUseCase defines the credential pool operations. Claim and the mutating
// operations are transaction-agnostic: the allocation coordinator opens the
// transaction and these run inside it.
type PoolUseCase interface {
	// Claim assigns exactly count credentials from the partition to the
	// subject, all or nothing. Returns errors.ErrInsufficientResources when
	// fewer than count free credentials could be locked; the caller's
	// transaction rollback then leaves no partial assignment behind.
	Claim(
		ctx context.Context,
		subject uuid.UUID,
		partition poolDomain.Partition,
		count int,
	) ([]*poolDomain.Credential, error)

	// Release returns a credential to its partition's unassigned set.
	Release(ctx context.Context, credentialID uuid.UUID) error

	// ReleaseAllForSubject releases every credential held by the subject.
	// Only effective when the release-on-subject-delete policy is enabled;
	// otherwise it returns 0 without touching any row.
	ReleaseAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error)

	// ChangePartition moves an unassigned credential to another partition.
	ChangePartition(ctx context.Context, credentialID uuid.UUID, partition poolDomain.Partition) error

	// Import encrypts a plaintext payload and stores it as a new unassigned
	// credential in the partition.
	Import(ctx context.Context, partition poolDomain.Partition, payload []byte) (*poolDomain.Credential, error)

	// Get retrieves a credential by ID.
	Get(ctx context.Context, credentialID uuid.UUID) (*poolDomain.Credential, error)

	// List retrieves credentials in a partition with pagination.
	List(ctx context.Context, partition poolDomain.Partition, offset, limit int) ([]*poolDomain.Credential, error)

	// CountUnassigned reports the free capacity of a partition.
	CountUnassigned(ctx context.Context, partition poolDomain.Partition) (int64, error)
}
