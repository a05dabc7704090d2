package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/handoff/internal/errors"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
)

// ledgerUseCase implements LedgerUseCase.
type ledgerUseCase struct {
	slotRepo      SlotRepository
	productLocker ProductLocker
	logger        *slog.Logger
}

// NewLedgerUseCase creates a new LedgerUseCase with the provided dependencies.
func NewLedgerUseCase(
	slotRepo SlotRepository,
	productLocker ProductLocker,
	logger *slog.Logger,
) LedgerUseCase {
	return &ledgerUseCase{
		slotRepo:      slotRepo,
		productLocker: productLocker,
		logger:        logger,
	}
}

// Acquire decides admission against the product's instantaneous ceiling. The
// product row lock taken by GetForUpdate serializes concurrent acquisitions
// for the same product: the count observed here stays accurate until the
// enclosing transaction commits, so the ceiling can never be oversubscribed.
func (l *ledgerUseCase) Acquire(
	ctx context.Context,
	subject uuid.UUID,
	productID uuid.UUID,
	leaseTTL time.Duration,
) (*AcquireDecision, error) {
	if subject == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "subject must not be empty")
	}
	if productID == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "product id must not be empty")
	}
	if leaseTTL <= 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "lease ttl must be positive")
	}

	product, err := l.productLocker.GetForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}

	granted, err := l.slotRepo.CountGranted(ctx, productID)
	if err != nil {
		return nil, err
	}

	if granted >= product.MaxConcurrentSlots {
		l.logger.InfoContext(ctx, "slot acquisition deferred, ceiling reached",
			slog.String("subject", subject.String()),
			slog.String("product_id", productID.String()),
			slog.Int("granted", granted),
			slog.Int("ceiling", product.MaxConcurrentSlots),
		)
		return &AcquireDecision{Granted: false}, nil
	}

	now := time.Now().UTC()
	slot := &ledgerDomain.Slot{
		ID:        uuid.Must(uuid.NewV7()),
		ProductID: productID,
		Subject:   subject,
		Status:    ledgerDomain.GrantedStatus,
		ExpiresAt: now.Add(leaseTTL),
		CreatedAt: now,
	}

	if err := l.slotRepo.Create(ctx, slot); err != nil {
		return nil, err
	}

	return &AcquireDecision{Granted: true, Slot: slot}, nil
}

// Release moves a granted slot to the terminal status for outcome.
func (l *ledgerUseCase) Release(
	ctx context.Context,
	slotID uuid.UUID,
	outcome ledgerDomain.Outcome,
) (*ledgerDomain.Slot, error) {
	if slotID == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "slot id must not be empty")
	}

	status, ok := ledgerDomain.StatusForOutcome(outcome)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown release outcome %q", outcome)
	}

	releasedAt := time.Now().UTC()
	if err := l.slotRepo.Finish(ctx, slotID, status, releasedAt); err != nil {
		return nil, err
	}

	slot, err := l.slotRepo.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// Get retrieves a slot by ID.
func (l *ledgerUseCase) Get(ctx context.Context, slotID uuid.UUID) (*ledgerDomain.Slot, error) {
	return l.slotRepo.Get(ctx, slotID)
}

// ListBySubject retrieves a subject's slots with pagination.
func (l *ledgerUseCase) ListBySubject(
	ctx context.Context,
	subject uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Slot, error) {
	if subject == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "subject must not be empty")
	}
	return l.slotRepo.ListBySubject(ctx, subject, offset, limit)
}

// ReapExpired moves expired granted slots to reaped-expired. An expired slot
// keeps counting against the ceiling until this runs; the sweep is what frees
// the capacity.
func (l *ledgerUseCase) ReapExpired(ctx context.Context, limit int) (int64, error) {
	return l.slotRepo.ReapExpired(ctx, time.Now().UTC(), limit)
}
