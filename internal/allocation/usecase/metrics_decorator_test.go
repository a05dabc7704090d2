package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/handoff/internal/errors"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// recordingMetrics captures recorded operations for assertions.
type recordingMetrics struct {
	operations []string
	statuses   []string
	durations  int
}

func (r *recordingMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	r.operations = append(r.operations, operation)
	r.statuses = append(r.statuses, status)
}

func (r *recordingMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	r.durations++
}

// stubAllocation returns canned results so the decorator's mapping can be
// observed in isolation.
type stubAllocation struct {
	acquireOutput *AcquireSlotOutput
	err           error
}

func (s *stubAllocation) ClaimCredentials(
	ctx context.Context,
	subject uuid.UUID,
	partition poolDomain.Partition,
	count int,
) (*ClaimOutput, error) {
	return &ClaimOutput{}, s.err
}

func (s *stubAllocation) ReleaseCredential(ctx context.Context, credentialID uuid.UUID) error {
	return s.err
}

func (s *stubAllocation) ChangeCredentialPartition(
	ctx context.Context,
	credentialID uuid.UUID,
	partition poolDomain.Partition,
) error {
	return s.err
}

func (s *stubAllocation) ReleaseAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error) {
	return 0, s.err
}

func (s *stubAllocation) FetchCredentialPayload(ctx context.Context, plainToken string) (*FetchOutput, error) {
	return &FetchOutput{}, s.err
}

func (s *stubAllocation) AcquireSlot(
	ctx context.Context,
	subject uuid.UUID,
	productID uuid.UUID,
) (*AcquireSlotOutput, error) {
	return s.acquireOutput, s.err
}

func (s *stubAllocation) ReleaseSlot(
	ctx context.Context,
	slotID uuid.UUID,
	outcome ledgerDomain.Outcome,
) error {
	return s.err
}

func (s *stubAllocation) FetchProductPayload(ctx context.Context, plainToken string) (*FetchOutput, error) {
	return &FetchOutput{}, s.err
}

func TestAllocationMetricsDecorator(t *testing.T) {
	ctx := context.Background()
	subject := uuid.Must(uuid.NewV7())

	t.Run("Success_RecordsOperationAndDuration", func(t *testing.T) {
		recorder := &recordingMetrics{}
		decorated := NewAllocationUseCaseWithMetrics(&stubAllocation{}, recorder)

		_, err := decorated.ClaimCredentials(ctx, subject, poolDomain.UserRequestablePartition, 1)
		require.NoError(t, err)

		assert.Equal(t, []string{"claim_credentials"}, recorder.operations)
		assert.Equal(t, []string{"success"}, recorder.statuses)
		assert.Equal(t, 1, recorder.durations)
	})

	t.Run("Error_RecordsErrorStatus", func(t *testing.T) {
		recorder := &recordingMetrics{}
		decorated := NewAllocationUseCaseWithMetrics(
			&stubAllocation{err: apperrors.ErrInsufficientResources}, recorder,
		)

		_, err := decorated.ClaimCredentials(ctx, subject, poolDomain.UserRequestablePartition, 1)
		assert.Error(t, err)
		assert.Equal(t, []string{"error"}, recorder.statuses)
	})

	t.Run("AcquireSlot_WaitIsItsOwnStatus", func(t *testing.T) {
		recorder := &recordingMetrics{}
		decorated := NewAllocationUseCaseWithMetrics(
			&stubAllocation{acquireOutput: &AcquireSlotOutput{Granted: false}}, recorder,
		)

		output, err := decorated.AcquireSlot(ctx, subject, uuid.Must(uuid.NewV7()))
		require.NoError(t, err)
		assert.False(t, output.Granted)
		assert.Equal(t, []string{"wait"}, recorder.statuses)
	})
}
