package usecase

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	catalogDomain "github.com/allisson/handoff/internal/catalog/domain"
	apperrors "github.com/allisson/handoff/internal/errors"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
)

// mockSlotRepository is a mock implementation of SlotRepository.
type mockSlotRepository struct {
	mock.Mock
}

func (m *mockSlotRepository) Create(ctx context.Context, slot *ledgerDomain.Slot) error {
	args := m.Called(ctx, slot)
	return args.Error(0)
}

func (m *mockSlotRepository) Get(ctx context.Context, slotID uuid.UUID) (*ledgerDomain.Slot, error) {
	args := m.Called(ctx, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.Slot), args.Error(1)
}

func (m *mockSlotRepository) CountGranted(ctx context.Context, productID uuid.UUID) (int, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Error(1)
}

func (m *mockSlotRepository) Finish(
	ctx context.Context,
	slotID uuid.UUID,
	status ledgerDomain.Status,
	releasedAt time.Time,
) error {
	args := m.Called(ctx, slotID, status, releasedAt)
	return args.Error(0)
}

func (m *mockSlotRepository) ListBySubject(
	ctx context.Context,
	subject uuid.UUID,
	offset, limit int,
) ([]*ledgerDomain.Slot, error) {
	args := m.Called(ctx, subject, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledgerDomain.Slot), args.Error(1)
}

func (m *mockSlotRepository) ReapExpired(
	ctx context.Context,
	now time.Time,
	limit int,
) (int64, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).(int64), args.Error(1)
}

// mockProductLocker is a mock implementation of ProductLocker.
type mockProductLocker struct {
	mock.Mock
}

func (m *mockProductLocker) GetForUpdate(
	ctx context.Context,
	productID uuid.UUID,
) (*catalogDomain.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogDomain.Product), args.Error(1)
}

func TestLedgerUseCase_Acquire(t *testing.T) {
	ctx := context.Background()

	product := &catalogDomain.Product{
		ID:                 uuid.Must(uuid.NewV7()),
		Name:               "shared-vpn",
		MaxConcurrentSlots: 3,
		CreatedAt:          time.Now().UTC(),
	}
	subject := uuid.Must(uuid.NewV7())

	t.Run("Granted_BelowCeiling", func(t *testing.T) {
		mockRepo := &mockSlotRepository{}
		mockLocker := &mockProductLocker{}
		useCase := NewLedgerUseCase(mockRepo, mockLocker, slog.Default())

		mockLocker.On("GetForUpdate", ctx, product.ID).Return(product, nil).Once()
		mockRepo.On("CountGranted", ctx, product.ID).Return(2, nil).Once()

		var created *ledgerDomain.Slot
		mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.Slot")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*ledgerDomain.Slot)
			}).
			Return(nil).
			Once()

		decision, err := useCase.Acquire(ctx, subject, product.ID, 2*time.Hour)
		require.NoError(t, err)
		assert.True(t, decision.Granted)
		require.NotNil(t, decision.Slot)
		assert.Equal(t, ledgerDomain.GrantedStatus, created.Status)
		assert.Equal(t, subject, created.Subject)
		assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), created.ExpiresAt, 2*time.Second)
		mockRepo.AssertExpectations(t)
		mockLocker.AssertExpectations(t)
	})

	t.Run("Wait_AtCeiling", func(t *testing.T) {
		mockRepo := &mockSlotRepository{}
		mockLocker := &mockProductLocker{}
		useCase := NewLedgerUseCase(mockRepo, mockLocker, slog.Default())

		mockLocker.On("GetForUpdate", ctx, product.ID).Return(product, nil).Once()
		mockRepo.On("CountGranted", ctx, product.ID).Return(3, nil).Once()

		// At the ceiling the answer is Wait: no slot row, no reservation
		decision, err := useCase.Acquire(ctx, subject, product.ID, 2*time.Hour)
		require.NoError(t, err)
		assert.False(t, decision.Granted)
		assert.Nil(t, decision.Slot)
		mockRepo.AssertNotCalled(t, "Create")
	})

	t.Run("Error_ProductNotFound", func(t *testing.T) {
		mockRepo := &mockSlotRepository{}
		mockLocker := &mockProductLocker{}
		useCase := NewLedgerUseCase(mockRepo, mockLocker, slog.Default())

		missing := uuid.Must(uuid.NewV7())
		mockLocker.On("GetForUpdate", ctx, missing).
			Return(nil, catalogDomain.ErrProductNotFound).
			Once()

		_, err := useCase.Acquire(ctx, subject, missing, time.Hour)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Error_InvalidInput", func(t *testing.T) {
		mockRepo := &mockSlotRepository{}
		mockLocker := &mockProductLocker{}
		useCase := NewLedgerUseCase(mockRepo, mockLocker, slog.Default())

		_, err := useCase.Acquire(ctx, uuid.Nil, product.ID, time.Hour)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = useCase.Acquire(ctx, subject, uuid.Nil, time.Hour)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		_, err = useCase.Acquire(ctx, subject, product.ID, 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		mockLocker.AssertNotCalled(t, "GetForUpdate")
	})
}

func TestLedgerUseCase_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ReleaseWithOutcome", func(t *testing.T) {
		mockRepo := &mockSlotRepository{}
		useCase := NewLedgerUseCase(mockRepo, &mockProductLocker{}, slog.Default())

		slotID := uuid.Must(uuid.NewV7())
		releasedAt := time.Now().UTC()
		released := &ledgerDomain.Slot{
			ID:         slotID,
			Status:     ledgerDomain.ReleasedErrorStatus,
			ReleasedAt: &releasedAt,
		}

		mockRepo.On("Finish", ctx, slotID, ledgerDomain.ReleasedErrorStatus, mock.AnythingOfType("time.Time")).
			Return(nil).
			Once()
		mockRepo.On("Get", ctx, slotID).Return(released, nil).Once()

		slot, err := useCase.Release(ctx, slotID, ledgerDomain.ErrorOutcome)
		require.NoError(t, err)
		assert.Equal(t, ledgerDomain.ReleasedErrorStatus, slot.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Error_SecondReleaseAlreadyReleased", func(t *testing.T) {
		mockRepo := &mockSlotRepository{}
		useCase := NewLedgerUseCase(mockRepo, &mockProductLocker{}, slog.Default())

		slotID := uuid.Must(uuid.NewV7())
		mockRepo.On("Finish", ctx, slotID, ledgerDomain.ReleasedSuccessStatus, mock.AnythingOfType("time.Time")).
			Return(apperrors.Wrap(apperrors.ErrAlreadyReleased, "slot is not granted")).
			Once()

		_, err := useCase.Release(ctx, slotID, ledgerDomain.SuccessOutcome)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyReleased)
		mockRepo.AssertNotCalled(t, "Get")
	})

	t.Run("Error_UnknownOutcome", func(t *testing.T) {
		mockRepo := &mockSlotRepository{}
		useCase := NewLedgerUseCase(mockRepo, &mockProductLocker{}, slog.Default())

		_, err := useCase.Release(ctx, uuid.Must(uuid.NewV7()), ledgerDomain.Outcome("abandoned"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		mockRepo.AssertNotCalled(t, "Finish")
	})
}

func TestLedgerUseCase_ReapExpired(t *testing.T) {
	ctx := context.Background()

	mockRepo := &mockSlotRepository{}
	useCase := NewLedgerUseCase(mockRepo, &mockProductLocker{}, slog.Default())

	mockRepo.On("ReapExpired", ctx, mock.AnythingOfType("time.Time"), 100).
		Return(int64(5), nil).
		Once()

	reaped, err := useCase.ReapExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(5), reaped)
	mockRepo.AssertExpectations(t)
}
