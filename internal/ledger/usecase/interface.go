// Package usecase implements business logic for the slot ledger.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	catalogDomain "github.com/allisson/handoff/internal/catalog/domain"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
)

// SlotRepository defines slot persistence operations. Mutating operations run
// inside a transaction opened by the caller (the allocation coordinator or
// the reaper); the repository picks it up from the context.
type SlotRepository interface {
	// Create inserts a new slot. The caller must hold the product row lock.
	Create(ctx context.Context, slot *ledgerDomain.Slot) error

	// Get retrieves a slot by ID. Returns ledgerDomain.ErrSlotNotFound if no
	// slot matches.
	Get(ctx context.Context, slotID uuid.UUID) (*ledgerDomain.Slot, error)

	// CountGranted counts granted slots for the product. Valid only while the
	// caller holds the product row lock.
	CountGranted(ctx context.Context, productID uuid.UUID) (int, error)

	// Finish moves a granted slot to a terminal status exactly once. Returns
	// errors.ErrAlreadyReleased if the slot is already terminal.
	Finish(ctx context.Context, slotID uuid.UUID, status ledgerDomain.Status, releasedAt time.Time) error

	// ListBySubject retrieves a subject's slots, newest first, with pagination.
	ListBySubject(ctx context.Context, subject uuid.UUID, offset, limit int) ([]*ledgerDomain.Slot, error)

	// ReapExpired moves expired granted slots to reaped-expired, skipping
	// locked rows, and returns how many were reaped.
	ReapExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}

// ProductLocker locks a product row for the duration of the enclosing
// transaction. Satisfied by the catalog repositories.
type ProductLocker interface {
	// GetForUpdate retrieves a product by ID under a row lock.
	GetForUpdate(ctx context.Context, productID uuid.UUID) (*catalogDomain.Product, error)
}

// AcquireDecision is the instantaneous admission verdict. There is no queue:
// Wait tells the subject to retry later, nothing is reserved on its behalf.
type AcquireDecision struct {
	Granted bool
	Slot    *ledgerDomain.Slot
}

// LedgerUseCase defines the slot ledger operations. Acquire and Release are
// transaction-agnostic: the allocation coordinator opens the transaction and
// these run inside it.
type LedgerUseCase interface {
	// Acquire decides admission for subject against the product's ceiling.
	// Granted inserts a new slot with the lease TTL; Wait returns without
	// side effects.
	Acquire(
		ctx context.Context,
		subject uuid.UUID,
		productID uuid.UUID,
		leaseTTL time.Duration,
	) (*AcquireDecision, error)

	// Release moves a granted slot to the terminal status for outcome. A
	// second release of the same slot fails with errors.ErrAlreadyReleased.
	Release(ctx context.Context, slotID uuid.UUID, outcome ledgerDomain.Outcome) (*ledgerDomain.Slot, error)

	// Get retrieves a slot by ID.
	Get(ctx context.Context, slotID uuid.UUID) (*ledgerDomain.Slot, error)

	// ListBySubject retrieves a subject's slots with pagination.
	ListBySubject(ctx context.Context, subject uuid.UUID, offset, limit int) ([]*ledgerDomain.Slot, error)

	// ReapExpired formalizes expired leases as reaped. Called by the reaper.
	ReapExpired(ctx context.Context, limit int) (int64, error)
}
