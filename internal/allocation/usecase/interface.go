// Package usecase implements the allocation coordinator, the single
// transaction boundary of the engine. Every operation here runs as exactly one
// database transaction: the pool, ledger, and token use cases it orchestrates
// are transaction-agnostic and inherit the transaction from the context.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// ClaimedCredential pairs one claimed credential with its single-use handoff
// token. The plain token is returned exactly once.
type ClaimedCredential struct {
	CredentialID   uuid.UUID
	Partition      poolDomain.Partition
	PlainToken     string
	TokenExpiresAt time.Time
}

// ClaimOutput is the result of a successful all-or-nothing claim.
type ClaimOutput struct {
	Credentials []ClaimedCredential
}

// AcquireSlotOutput is the result of a slot acquisition. Granted is false when
// the product is at its ceiling; nothing is reserved and the subject should
// retry later. When granted, PlainToken authorizes one payload fetch.
type AcquireSlotOutput struct {
	Granted        bool
	SlotID         uuid.UUID
	SlotExpiresAt  time.Time
	PlainToken     string
	TokenExpiresAt time.Time
}

// FetchOutput carries a decrypted payload released by a consumed token.
type FetchOutput struct {
	Subject uuid.UUID
	Payload []byte
}

// AllocationUseCase defines the coordinator operations. Each call is one
// transaction; partial effects never survive an error.
type AllocationUseCase interface {
	// ClaimCredentials claims exactly count credentials from the partition for
	// the subject and issues one single-use fetch token per credential. Fails
	// with errors.ErrInsufficientResources when the partition cannot satisfy
	// the request, leaving no assignment behind.
	ClaimCredentials(
		ctx context.Context,
		subject uuid.UUID,
		partition poolDomain.Partition,
		count int,
	) (*ClaimOutput, error)

	// ReleaseCredential returns a credential to its partition's unassigned set.
	ReleaseCredential(ctx context.Context, credentialID uuid.UUID) error

	// ChangeCredentialPartition moves an unassigned credential to another
	// partition.
	ChangeCredentialPartition(
		ctx context.Context,
		credentialID uuid.UUID,
		partition poolDomain.Partition,
	) error

	// ReleaseAllForSubject releases every credential held by a deleted
	// subject, subject to the release-on-subject-delete policy.
	ReleaseAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error)

	// FetchCredentialPayload consumes a credential-fetch token and returns the
	// decrypted credential payload. Any invalid token fails with the opaque
	// errors.ErrInvalidToken.
	FetchCredentialPayload(ctx context.Context, plainToken string) (*FetchOutput, error)

	// AcquireSlot asks for admission to a product. Granted inserts a slot and
	// issues a product-fetch token; Wait returns with no side effects.
	AcquireSlot(ctx context.Context, subject uuid.UUID, productID uuid.UUID) (*AcquireSlotOutput, error)

	// ReleaseSlot moves a granted slot to the terminal status for outcome.
	ReleaseSlot(ctx context.Context, slotID uuid.UUID, outcome ledgerDomain.Outcome) error

	// FetchProductPayload consumes a product-fetch token and returns the
	// decrypted payload of the product behind the token's slot. The slot must
	// still be granted.
	FetchProductPayload(ctx context.Context, plainToken string) (*FetchOutput, error)
}
