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

	"github.com/allisson/handoff/internal/audit"
	catalogDomain "github.com/allisson/handoff/internal/catalog/domain"
	apperrors "github.com/allisson/handoff/internal/errors"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
	ledgerUsecase "github.com/allisson/handoff/internal/ledger/usecase"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
	tokenDomain "github.com/allisson/handoff/internal/token/domain"
	tokenUsecase "github.com/allisson/handoff/internal/token/usecase"
)

// fakeTxManager runs the function directly. A rolled-back transaction is
// represented by the error propagating out.
type fakeTxManager struct {
	calls int
}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// mockPoolUseCase mocks the pool use case surface the coordinator touches.
type mockPoolUseCase struct {
	mock.Mock
}

func (m *mockPoolUseCase) Claim(
	ctx context.Context,
	subject uuid.UUID,
	partition poolDomain.Partition,
	count int,
) ([]*poolDomain.Credential, error) {
	args := m.Called(ctx, subject, partition, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*poolDomain.Credential), args.Error(1)
}

func (m *mockPoolUseCase) Release(ctx context.Context, credentialID uuid.UUID) error {
	args := m.Called(ctx, credentialID)
	return args.Error(0)
}

func (m *mockPoolUseCase) ReleaseAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error) {
	args := m.Called(ctx, subject)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPoolUseCase) ChangePartition(
	ctx context.Context,
	credentialID uuid.UUID,
	partition poolDomain.Partition,
) error {
	args := m.Called(ctx, credentialID, partition)
	return args.Error(0)
}

func (m *mockPoolUseCase) Import(
	ctx context.Context,
	partition poolDomain.Partition,
	payload []byte,
) (*poolDomain.Credential, error) {
	args := m.Called(ctx, partition, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*poolDomain.Credential), args.Error(1)
}

func (m *mockPoolUseCase) Get(ctx context.Context, credentialID uuid.UUID) (*poolDomain.Credential, error) {
	args := m.Called(ctx, credentialID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*poolDomain.Credential), args.Error(1)
}

func (m *mockPoolUseCase) List(
	ctx context.Context,
	partition poolDomain.Partition,
	offset, limit int,
) ([]*poolDomain.Credential, error) {
	args := m.Called(ctx, partition, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*poolDomain.Credential), args.Error(1)
}

func (m *mockPoolUseCase) CountUnassigned(
	ctx context.Context,
	partition poolDomain.Partition,
) (int64, error) {
	args := m.Called(ctx, partition)
	return args.Get(0).(int64), args.Error(1)
}

// mockLedgerUseCase mocks the ledger use case.
type mockLedgerUseCase struct {
	mock.Mock
}

func (m *mockLedgerUseCase) Acquire(
	ctx context.Context,
	subject uuid.UUID,
	productID uuid.UUID,
	leaseTTL time.Duration,
) (*ledgerUsecase.AcquireDecision, error) {
	args := m.Called(ctx, subject, productID, leaseTTL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerUsecase.AcquireDecision), args.Error(1)
}

func (m *mockLedgerUseCase) Release(
	ctx context.Context,
	slotID uuid.UUID,
	outcome ledgerDomain.Outcome,
) (*ledgerDomain.Slot, error) {
	args := m.Called(ctx, slotID, outcome)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.Slot), args.Error(1)
}

func (m *mockLedgerUseCase) Get(ctx context.Context, slotID uuid.UUID) (*ledgerDomain.Slot, error) {
	args := m.Called(ctx, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledgerDomain.Slot), args.Error(1)
}

func (m *mockLedgerUseCase) ListBySubject(
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

func (m *mockLedgerUseCase) ReapExpired(ctx context.Context, limit int) (int64, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(int64), args.Error(1)
}

// mockCatalogUseCase mocks the catalog use case.
type mockCatalogUseCase struct {
	mock.Mock
}

func (m *mockCatalogUseCase) CreateProduct(
	ctx context.Context,
	name string,
	maxConcurrentSlots int,
	payload []byte,
) (*catalogDomain.Product, error) {
	args := m.Called(ctx, name, maxConcurrentSlots, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogDomain.Product), args.Error(1)
}

func (m *mockCatalogUseCase) Get(
	ctx context.Context,
	productID uuid.UUID,
) (*catalogDomain.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogDomain.Product), args.Error(1)
}

func (m *mockCatalogUseCase) List(
	ctx context.Context,
	offset, limit int,
) ([]*catalogDomain.Product, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalogDomain.Product), args.Error(1)
}

// mockTokenUseCase mocks the token use case.
type mockTokenUseCase struct {
	mock.Mock
}

func (m *mockTokenUseCase) Issue(
	ctx context.Context,
	subject uuid.UUID,
	purpose tokenDomain.Purpose,
	ttl time.Duration,
) (*tokenUsecase.IssueOutput, error) {
	args := m.Called(ctx, subject, purpose, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tokenUsecase.IssueOutput), args.Error(1)
}

func (m *mockTokenUseCase) ValidateAndConsume(
	ctx context.Context,
	plainToken string,
) (*tokenDomain.Token, error) {
	args := m.Called(ctx, plainToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tokenDomain.Token), args.Error(1)
}

func (m *mockTokenUseCase) ReapExpired(ctx context.Context, limit int) (int64, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(int64), args.Error(1)
}

// mockPayloadCipher mocks the payload cipher.
type mockPayloadCipher struct {
	mock.Mock
}

func (m *mockPayloadCipher) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	args := m.Called(ctx, plaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockPayloadCipher) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	args := m.Called(ctx, ciphertext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type coordinatorMocks struct {
	tx     *fakeTxManager
	pool   *mockPoolUseCase
	ledger *mockLedgerUseCase
	cat    *mockCatalogUseCase
	token  *mockTokenUseCase
	cipher *mockPayloadCipher
}

func newCoordinator(t *testing.T) (AllocationUseCase, *coordinatorMocks) {
	t.Helper()
	m := &coordinatorMocks{
		tx:     &fakeTxManager{},
		pool:   &mockPoolUseCase{},
		ledger: &mockLedgerUseCase{},
		cat:    &mockCatalogUseCase{},
		token:  &mockTokenUseCase{},
		cipher: &mockPayloadCipher{},
	}
	useCase := NewAllocationUseCase(
		m.tx, m.pool, m.ledger, m.cat, m.token, m.cipher,
		audit.NewNopSink(), 30*time.Minute, 4*time.Hour, slog.Default(),
	)
	return useCase, m
}

func TestAllocationUseCase_ClaimCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_OneTokenPerCredential", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		subject := uuid.Must(uuid.NewV7())
		first := &poolDomain.Credential{ID: uuid.Must(uuid.NewV7()), Partition: poolDomain.UserRequestablePartition}
		second := &poolDomain.Credential{ID: uuid.Must(uuid.NewV7()), Partition: poolDomain.UserRequestablePartition}

		m.pool.On("Claim", mock.Anything, subject, poolDomain.UserRequestablePartition, 2).
			Return([]*poolDomain.Credential{first, second}, nil).
			Once()

		for i, credential := range []*poolDomain.Credential{first, second} {
			m.token.On("Issue", mock.Anything, credential.ID, tokenDomain.CredentialFetchPurpose, 30*time.Minute).
				Return(&tokenUsecase.IssueOutput{
					PlainToken: []string{"tok-a", "tok-b"}[i],
					Token: &tokenDomain.Token{
						ID:        uuid.Must(uuid.NewV7()),
						Subject:   credential.ID,
						Purpose:   tokenDomain.CredentialFetchPurpose,
						ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
					},
				}, nil).
				Once()
		}

		output, err := useCase.ClaimCredentials(ctx, subject, poolDomain.UserRequestablePartition, 2)
		require.NoError(t, err)
		require.Len(t, output.Credentials, 2)
		assert.Equal(t, first.ID, output.Credentials[0].CredentialID)
		assert.Equal(t, "tok-a", output.Credentials[0].PlainToken)
		assert.Equal(t, "tok-b", output.Credentials[1].PlainToken)
		assert.Equal(t, 1, m.tx.calls)
		m.pool.AssertExpectations(t)
		m.token.AssertExpectations(t)
	})

	t.Run("Error_InsufficientRollsBack", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		subject := uuid.Must(uuid.NewV7())
		m.pool.On("Claim", mock.Anything, subject, poolDomain.AutoAssignPartition, 5).
			Return(nil, apperrors.ErrInsufficientResources).
			Once()

		_, err := useCase.ClaimCredentials(ctx, subject, poolDomain.AutoAssignPartition, 5)
		assert.ErrorIs(t, err, apperrors.ErrInsufficientResources)
		m.token.AssertNotCalled(t, "Issue")
	})
}

func TestAllocationUseCase_FetchCredentialPayload(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ConsumeAndDecrypt", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		holder := uuid.Must(uuid.NewV7())
		credential := &poolDomain.Credential{
			ID:               uuid.Must(uuid.NewV7()),
			EncryptedPayload: []byte("ciphertext"),
			AssignedTo:       &holder,
		}
		token := &tokenDomain.Token{
			ID:      uuid.Must(uuid.NewV7()),
			Subject: credential.ID,
			Purpose: tokenDomain.CredentialFetchPurpose,
		}

		m.token.On("ValidateAndConsume", mock.Anything, "plain-token").Return(token, nil).Once()
		m.pool.On("Get", mock.Anything, credential.ID).Return(credential, nil).Once()
		m.cipher.On("Decrypt", mock.Anything, []byte("ciphertext")).Return([]byte("payload"), nil).Once()

		output, err := useCase.FetchCredentialPayload(ctx, "plain-token")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), output.Payload)
		assert.Equal(t, holder, output.Subject)
		m.token.AssertExpectations(t)
	})

	t.Run("Error_ReleasedCredentialIsOpaque", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		credential := &poolDomain.Credential{
			ID:               uuid.Must(uuid.NewV7()),
			EncryptedPayload: []byte("ciphertext"),
		}
		token := &tokenDomain.Token{
			ID:      uuid.Must(uuid.NewV7()),
			Subject: credential.ID,
			Purpose: tokenDomain.CredentialFetchPurpose,
		}

		m.token.On("ValidateAndConsume", mock.Anything, "plain-token").Return(token, nil).Once()
		m.pool.On("Get", mock.Anything, credential.ID).Return(credential, nil).Once()

		_, err := useCase.FetchCredentialPayload(ctx, "plain-token")
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
		m.cipher.AssertNotCalled(t, "Decrypt")
	})

	t.Run("Error_WrongPurposeIsOpaque", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		token := &tokenDomain.Token{
			ID:      uuid.Must(uuid.NewV7()),
			Subject: uuid.Must(uuid.NewV7()),
			Purpose: tokenDomain.ProductFetchPurpose,
		}
		m.token.On("ValidateAndConsume", mock.Anything, "plain-token").Return(token, nil).Once()

		_, err := useCase.FetchCredentialPayload(ctx, "plain-token")
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
		m.pool.AssertNotCalled(t, "Get")
	})

	t.Run("Error_InvalidTokenPassesThrough", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		m.token.On("ValidateAndConsume", mock.Anything, "bogus").
			Return(nil, apperrors.ErrInvalidToken).
			Once()

		_, err := useCase.FetchCredentialPayload(ctx, "bogus")
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	})
}

func TestAllocationUseCase_AcquireSlot(t *testing.T) {
	ctx := context.Background()

	subject := uuid.Must(uuid.NewV7())
	productID := uuid.Must(uuid.NewV7())

	t.Run("Granted_IssuesSlotBoundToken", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		slot := &ledgerDomain.Slot{
			ID:        uuid.Must(uuid.NewV7()),
			ProductID: productID,
			Subject:   subject,
			Status:    ledgerDomain.GrantedStatus,
			ExpiresAt: time.Now().UTC().Add(4 * time.Hour),
		}

		m.ledger.On("Acquire", mock.Anything, subject, productID, 4*time.Hour).
			Return(&ledgerUsecase.AcquireDecision{Granted: true, Slot: slot}, nil).
			Once()
		m.token.On("Issue", mock.Anything, slot.ID, tokenDomain.ProductFetchPurpose, 30*time.Minute).
			Return(&tokenUsecase.IssueOutput{
				PlainToken: "slot-token",
				Token: &tokenDomain.Token{
					ID:        uuid.Must(uuid.NewV7()),
					Subject:   slot.ID,
					Purpose:   tokenDomain.ProductFetchPurpose,
					ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
				},
			}, nil).
			Once()

		output, err := useCase.AcquireSlot(ctx, subject, productID)
		require.NoError(t, err)
		assert.True(t, output.Granted)
		assert.Equal(t, slot.ID, output.SlotID)
		assert.Equal(t, "slot-token", output.PlainToken)
		m.ledger.AssertExpectations(t)
		m.token.AssertExpectations(t)
	})

	t.Run("Wait_NoTokenNoSlot", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		m.ledger.On("Acquire", mock.Anything, subject, productID, 4*time.Hour).
			Return(&ledgerUsecase.AcquireDecision{Granted: false}, nil).
			Once()

		output, err := useCase.AcquireSlot(ctx, subject, productID)
		require.NoError(t, err)
		assert.False(t, output.Granted)
		assert.Empty(t, output.PlainToken)
		m.token.AssertNotCalled(t, "Issue")
	})
}

func TestAllocationUseCase_FetchProductPayload(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_GrantedSlot", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		product := &catalogDomain.Product{
			ID:               uuid.Must(uuid.NewV7()),
			EncryptedPayload: []byte("ciphertext"),
		}
		slot := &ledgerDomain.Slot{
			ID:        uuid.Must(uuid.NewV7()),
			ProductID: product.ID,
			Subject:   uuid.Must(uuid.NewV7()),
			Status:    ledgerDomain.GrantedStatus,
		}
		token := &tokenDomain.Token{
			ID:      uuid.Must(uuid.NewV7()),
			Subject: slot.ID,
			Purpose: tokenDomain.ProductFetchPurpose,
		}

		m.token.On("ValidateAndConsume", mock.Anything, "slot-token").Return(token, nil).Once()
		m.ledger.On("Get", mock.Anything, slot.ID).Return(slot, nil).Once()
		m.cat.On("Get", mock.Anything, product.ID).Return(product, nil).Once()
		m.cipher.On("Decrypt", mock.Anything, []byte("ciphertext")).Return([]byte("payload"), nil).Once()

		output, err := useCase.FetchProductPayload(ctx, "slot-token")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), output.Payload)
		assert.Equal(t, slot.Subject, output.Subject)
	})

	t.Run("Error_SlotNoLongerGranted", func(t *testing.T) {
		useCase, m := newCoordinator(t)

		releasedAt := time.Now().UTC()
		slot := &ledgerDomain.Slot{
			ID:         uuid.Must(uuid.NewV7()),
			Status:     ledgerDomain.ReapedExpiredStatus,
			ReleasedAt: &releasedAt,
		}
		token := &tokenDomain.Token{
			ID:      uuid.Must(uuid.NewV7()),
			Subject: slot.ID,
			Purpose: tokenDomain.ProductFetchPurpose,
		}

		m.token.On("ValidateAndConsume", mock.Anything, "slot-token").Return(token, nil).Once()
		m.ledger.On("Get", mock.Anything, slot.ID).Return(slot, nil).Once()

		_, err := useCase.FetchProductPayload(ctx, "slot-token")
		assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
		m.cat.AssertNotCalled(t, "Get")
	})
}

func TestAllocationUseCase_ReleaseSlot(t *testing.T) {
	ctx := context.Background()

	useCase, m := newCoordinator(t)

	slotID := uuid.Must(uuid.NewV7())
	releasedAt := time.Now().UTC()
	released := &ledgerDomain.Slot{
		ID:         slotID,
		ProductID:  uuid.Must(uuid.NewV7()),
		Subject:    uuid.Must(uuid.NewV7()),
		Status:     ledgerDomain.ReleasedSuccessStatus,
		ReleasedAt: &releasedAt,
	}

	m.ledger.On("Release", mock.Anything, slotID, ledgerDomain.SuccessOutcome).
		Return(released, nil).
		Once()

	err := useCase.ReleaseSlot(ctx, slotID, ledgerDomain.SuccessOutcome)
	require.NoError(t, err)
	m.ledger.AssertExpectations(t)
}
