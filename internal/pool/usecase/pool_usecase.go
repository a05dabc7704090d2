package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	cryptoService "github.com/allisson/handoff/internal/crypto/service"
	apperrors "github.com/allisson/handoff/internal/errors"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// poolUseCase implements PoolUseCase.
type poolUseCase struct {
	credentialRepo         CredentialRepository
	payloadCipher          cryptoService.PayloadCipher
	releaseOnSubjectDelete bool
	logger                 *slog.Logger
}

// NewPoolUseCase creates a new PoolUseCase with the provided dependencies.
// releaseOnSubjectDelete controls whether ReleaseAllForSubject touches rows;
// it is off unless explicitly enabled.
func NewPoolUseCase(
	credentialRepo CredentialRepository,
	payloadCipher cryptoService.PayloadCipher,
	releaseOnSubjectDelete bool,
	logger *slog.Logger,
) PoolUseCase {
	return &poolUseCase{
		credentialRepo:         credentialRepo,
		payloadCipher:          payloadCipher,
		releaseOnSubjectDelete: releaseOnSubjectDelete,
		logger:                 logger,
	}
}

// Claim assigns exactly count credentials, all or nothing. The repository
// returns whatever it could lock; a short result means the partition could not
// satisfy the request right now, so the whole claim fails and the caller's
// transaction rollback undoes the assignments already written.
func (p *poolUseCase) Claim(
	ctx context.Context,
	subject uuid.UUID,
	partition poolDomain.Partition,
	count int,
) ([]*poolDomain.Credential, error) {
	if subject == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "subject must not be empty")
	}
	if !poolDomain.ValidPartition(partition) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown partition %q", partition)
	}
	if count < 1 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "count must be at least 1")
	}

	credentials, err := p.credentialRepo.ClaimUnassigned(ctx, partition, count, subject, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if len(credentials) < count {
		p.logger.InfoContext(ctx, "claim rejected, partition exhausted",
			slog.String("subject", subject.String()),
			slog.String("partition", string(partition)),
			slog.Int("requested", count),
			slog.Int("available", len(credentials)),
		)
		return nil, apperrors.Wrapf(
			apperrors.ErrInsufficientResources,
			"partition %q has %d free credentials, %d requested",
			partition, len(credentials), count,
		)
	}

	return credentials, nil
}

// Release returns a credential to its partition's unassigned set.
func (p *poolUseCase) Release(ctx context.Context, credentialID uuid.UUID) error {
	if credentialID == uuid.Nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "credential id must not be empty")
	}
	return p.credentialRepo.Release(ctx, credentialID)
}

// ReleaseAllForSubject releases every credential held by the subject when the
// release-on-subject-delete policy is enabled. The default keeps assignments
// in place so a deleted subject's resources require an explicit release.
func (p *poolUseCase) ReleaseAllForSubject(ctx context.Context, subject uuid.UUID) (int64, error) {
	if subject == uuid.Nil {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "subject must not be empty")
	}
	if !p.releaseOnSubjectDelete {
		p.logger.InfoContext(ctx, "subject-delete release skipped, policy disabled",
			slog.String("subject", subject.String()),
		)
		return 0, nil
	}
	return p.credentialRepo.ReleaseAllForSubject(ctx, subject)
}

// ChangePartition moves an unassigned credential to another partition.
func (p *poolUseCase) ChangePartition(
	ctx context.Context,
	credentialID uuid.UUID,
	partition poolDomain.Partition,
) error {
	if credentialID == uuid.Nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "credential id must not be empty")
	}
	if !poolDomain.ValidPartition(partition) {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown partition %q", partition)
	}
	return p.credentialRepo.UpdatePartition(ctx, credentialID, partition)
}

// Import encrypts the plaintext payload and stores a new unassigned credential.
func (p *poolUseCase) Import(
	ctx context.Context,
	partition poolDomain.Partition,
	payload []byte,
) (*poolDomain.Credential, error) {
	if !poolDomain.ValidPartition(partition) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown partition %q", partition)
	}
	if len(payload) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "payload must not be empty")
	}

	encrypted, err := p.payloadCipher.Encrypt(ctx, payload)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encrypt credential payload")
	}

	credential := &poolDomain.Credential{
		ID:               uuid.Must(uuid.NewV7()),
		Partition:        partition,
		EncryptedPayload: encrypted,
		CreatedAt:        time.Now().UTC(),
	}

	if err := p.credentialRepo.Create(ctx, credential); err != nil {
		return nil, err
	}

	return credential, nil
}

// Get retrieves a credential by ID.
func (p *poolUseCase) Get(ctx context.Context, credentialID uuid.UUID) (*poolDomain.Credential, error) {
	return p.credentialRepo.Get(ctx, credentialID)
}

// List retrieves credentials in a partition with pagination.
func (p *poolUseCase) List(
	ctx context.Context,
	partition poolDomain.Partition,
	offset, limit int,
) ([]*poolDomain.Credential, error) {
	if !poolDomain.ValidPartition(partition) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown partition %q", partition)
	}
	return p.credentialRepo.List(ctx, partition, offset, limit)
}

// CountUnassigned reports the free capacity of a partition.
func (p *poolUseCase) CountUnassigned(
	ctx context.Context,
	partition poolDomain.Partition,
) (int64, error) {
	if !poolDomain.ValidPartition(partition) {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "unknown partition %q", partition)
	}
	return p.credentialRepo.CountUnassigned(ctx, partition)
}
