package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
	"github.com/allisson/handoff/internal/metrics"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// allocationUseCaseWithMetrics decorates AllocationUseCase with metrics instrumentation.
type allocationUseCaseWithMetrics struct {
	next    AllocationUseCase
	metrics metrics.BusinessMetrics
}

// NewAllocationUseCaseWithMetrics wraps an AllocationUseCase with metrics recording.
func NewAllocationUseCaseWithMetrics(useCase AllocationUseCase, m metrics.BusinessMetrics) AllocationUseCase {
	return &allocationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// ClaimCredentials records metrics for pool claim operations.
func (a *allocationUseCaseWithMetrics) ClaimCredentials(
	ctx context.Context,
	subject uuid.UUID,
	partition poolDomain.Partition,
	count int,
) (*ClaimOutput, error) {
	start := time.Now()
	output, err := a.next.ClaimCredentials(ctx, subject, partition, count)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "allocation", "claim_credentials", status)
	a.metrics.RecordDuration(ctx, "allocation", "claim_credentials", time.Since(start), status)

	return output, err
}

// ReleaseCredential records metrics for credential release operations.
func (a *allocationUseCaseWithMetrics) ReleaseCredential(ctx context.Context, credentialID uuid.UUID) error {
	start := time.Now()
	err := a.next.ReleaseCredential(ctx, credentialID)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "allocation", "release_credential", status)
	a.metrics.RecordDuration(ctx, "allocation", "release_credential", time.Since(start), status)

	return err
}

// ChangeCredentialPartition records metrics for partition move operations.
func (a *allocationUseCaseWithMetrics) ChangeCredentialPartition(
	ctx context.Context,
	credentialID uuid.UUID,
	partition poolDomain.Partition,
) error {
	start := time.Now()
	err := a.next.ChangeCredentialPartition(ctx, credentialID, partition)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "allocation", "change_partition", status)
	a.metrics.RecordDuration(ctx, "allocation", "change_partition", time.Since(start), status)

	return err
}

// ReleaseAllForSubject records metrics for subject-delete release operations.
func (a *allocationUseCaseWithMetrics) ReleaseAllForSubject(
	ctx context.Context,
	subject uuid.UUID,
) (int64, error) {
	start := time.Now()
	released, err := a.next.ReleaseAllForSubject(ctx, subject)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "allocation", "release_all_for_subject", status)
	a.metrics.RecordDuration(ctx, "allocation", "release_all_for_subject", time.Since(start), status)

	return released, err
}

// FetchCredentialPayload records metrics for credential handoff fetches.
func (a *allocationUseCaseWithMetrics) FetchCredentialPayload(
	ctx context.Context,
	plainToken string,
) (*FetchOutput, error) {
	start := time.Now()
	output, err := a.next.FetchCredentialPayload(ctx, plainToken)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "allocation", "fetch_credential_payload", status)
	a.metrics.RecordDuration(ctx, "allocation", "fetch_credential_payload", time.Since(start), status)

	return output, err
}

// AcquireSlot records metrics for slot acquisitions. Wait is recorded as its
// own status so ceiling pressure shows up separately from failures.
func (a *allocationUseCaseWithMetrics) AcquireSlot(
	ctx context.Context,
	subject uuid.UUID,
	productID uuid.UUID,
) (*AcquireSlotOutput, error) {
	start := time.Now()
	output, err := a.next.AcquireSlot(ctx, subject, productID)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case !output.Granted:
		status = "wait"
	}

	a.metrics.RecordOperation(ctx, "allocation", "acquire_slot", status)
	a.metrics.RecordDuration(ctx, "allocation", "acquire_slot", time.Since(start), status)

	return output, err
}

// ReleaseSlot records metrics for slot release operations.
func (a *allocationUseCaseWithMetrics) ReleaseSlot(
	ctx context.Context,
	slotID uuid.UUID,
	outcome ledgerDomain.Outcome,
) error {
	start := time.Now()
	err := a.next.ReleaseSlot(ctx, slotID, outcome)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "allocation", "release_slot", status)
	a.metrics.RecordDuration(ctx, "allocation", "release_slot", time.Since(start), status)

	return err
}

// FetchProductPayload records metrics for product handoff fetches.
func (a *allocationUseCaseWithMetrics) FetchProductPayload(
	ctx context.Context,
	plainToken string,
) (*FetchOutput, error) {
	start := time.Now()
	output, err := a.next.FetchProductPayload(ctx, plainToken)

	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "allocation", "fetch_product_payload", status)
	a.metrics.RecordDuration(ctx, "allocation", "fetch_product_payload", time.Since(start), status)

	return output, err
}
