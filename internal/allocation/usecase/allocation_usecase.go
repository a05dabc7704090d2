package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/handoff/internal/audit"
	catalogUsecase "github.com/allisson/handoff/internal/catalog/usecase"
	cryptoService "github.com/allisson/handoff/internal/crypto/service"
	"github.com/allisson/handoff/internal/database"
	apperrors "github.com/allisson/handoff/internal/errors"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
	ledgerUsecase "github.com/allisson/handoff/internal/ledger/usecase"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
	poolUsecase "github.com/allisson/handoff/internal/pool/usecase"
	tokenDomain "github.com/allisson/handoff/internal/token/domain"
	tokenUsecase "github.com/allisson/handoff/internal/token/usecase"
)

// allocationUseCase implements AllocationUseCase.
type allocationUseCase struct {
	txManager     database.TxManager
	poolUseCase   poolUsecase.PoolUseCase
	ledgerUseCase ledgerUsecase.LedgerUseCase
	catalog       catalogUsecase.CatalogUseCase
	tokenUseCase  tokenUsecase.TokenUseCase
	payloadCipher cryptoService.PayloadCipher
	auditSink     audit.Sink
	tokenTTL      time.Duration
	slotLeaseTTL  time.Duration
	logger        *slog.Logger
}

// NewAllocationUseCase creates a new AllocationUseCase with the provided
// dependencies. tokenTTL bounds handoff tokens; slotLeaseTTL bounds slot
// leases.
func NewAllocationUseCase(
	txManager database.TxManager,
	poolUC poolUsecase.PoolUseCase,
	ledgerUC ledgerUsecase.LedgerUseCase,
	catalog catalogUsecase.CatalogUseCase,
	tokenUC tokenUsecase.TokenUseCase,
	payloadCipher cryptoService.PayloadCipher,
	auditSink audit.Sink,
	tokenTTL time.Duration,
	slotLeaseTTL time.Duration,
	logger *slog.Logger,
) AllocationUseCase {
	return &allocationUseCase{
		txManager:     txManager,
		poolUseCase:   poolUC,
		ledgerUseCase: ledgerUC,
		catalog:       catalog,
		tokenUseCase:  tokenUC,
		payloadCipher: payloadCipher,
		auditSink:     auditSink,
		tokenTTL:      tokenTTL,
		slotLeaseTTL:  slotLeaseTTL,
		logger:        logger,
	}
}

// ClaimCredentials claims exactly count credentials and issues one single-use
// token per credential, all inside one transaction. An insufficient partition
// rolls everything back: no assignment and no token survives.
func (a *allocationUseCase) ClaimCredentials(
	ctx context.Context,
	subject uuid.UUID,
	partition poolDomain.Partition,
	count int,
) (*ClaimOutput, error) {
	var output *ClaimOutput

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		credentials, err := a.poolUseCase.Claim(ctx, subject, partition, count)
		if err != nil {
			return err
		}

		claimed := make([]ClaimedCredential, 0, len(credentials))
		for _, credential := range credentials {
			issued, err := a.tokenUseCase.Issue(
				ctx, credential.ID, tokenDomain.CredentialFetchPurpose, a.tokenTTL,
			)
			if err != nil {
				return err
			}
			claimed = append(claimed, ClaimedCredential{
				CredentialID:   credential.ID,
				Partition:      credential.Partition,
				PlainToken:     issued.PlainToken,
				TokenExpiresAt: issued.Token.ExpiresAt,
			})
		}

		output = &ClaimOutput{Credentials: claimed}
		return nil
	})
	if err != nil {
		a.auditSink.Emit(ctx, subject, "claim_credentials", "rejected", map[string]any{
			"partition": string(partition),
			"count":     count,
		})
		return nil, err
	}

	a.auditSink.Emit(ctx, subject, "claim_credentials", "granted", map[string]any{
		"partition": string(partition),
		"count":     count,
	})
	return output, nil
}

// ReleaseCredential returns a credential to its partition's unassigned set.
func (a *allocationUseCase) ReleaseCredential(ctx context.Context, credentialID uuid.UUID) error {
	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		return a.poolUseCase.Release(ctx, credentialID)
	})
	if err != nil {
		return err
	}

	a.auditSink.Emit(ctx, credentialID, "release_credential", "released", nil)
	return nil
}

// ChangeCredentialPartition moves an unassigned credential to another partition.
func (a *allocationUseCase) ChangeCredentialPartition(
	ctx context.Context,
	credentialID uuid.UUID,
	partition poolDomain.Partition,
) error {
	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		return a.poolUseCase.ChangePartition(ctx, credentialID, partition)
	})
	if err != nil {
		return err
	}

	a.auditSink.Emit(ctx, credentialID, "change_partition", "moved", map[string]any{
		"partition": string(partition),
	})
	return nil
}

// ReleaseAllForSubject releases every credential held by a deleted subject.
func (a *allocationUseCase) ReleaseAllForSubject(
	ctx context.Context,
	subject uuid.UUID,
) (int64, error) {
	var released int64

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		released, err = a.poolUseCase.ReleaseAllForSubject(ctx, subject)
		return err
	})
	if err != nil {
		return 0, err
	}

	a.auditSink.Emit(ctx, subject, "release_all_for_subject", "released", map[string]any{
		"released": released,
	})
	return released, nil
}

// FetchCredentialPayload consumes a credential-fetch token and returns the
// decrypted payload. Consumption and the read happen in one transaction, so a
// token is never burned without its payload being produced.
func (a *allocationUseCase) FetchCredentialPayload(
	ctx context.Context,
	plainToken string,
) (*FetchOutput, error) {
	var output *FetchOutput

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		token, err := a.tokenUseCase.ValidateAndConsume(ctx, plainToken)
		if err != nil {
			return err
		}
		if token.Purpose != tokenDomain.CredentialFetchPurpose {
			return a.rejectFetch(ctx, token.ID, "wrong_purpose")
		}

		credential, err := a.poolUseCase.Get(ctx, token.Subject)
		if err != nil {
			return err
		}
		// A credential released between claim and fetch no longer authorizes one
		if !credential.IsAssigned() {
			return a.rejectFetch(ctx, token.ID, "credential_not_assigned")
		}

		payload, err := a.payloadCipher.Decrypt(ctx, credential.EncryptedPayload)
		if err != nil {
			return apperrors.Wrap(err, "failed to decrypt credential payload")
		}

		output = &FetchOutput{Subject: *credential.AssignedTo, Payload: payload}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.auditSink.Emit(ctx, output.Subject, "fetch_credential_payload", "delivered", nil)
	return output, nil
}

// AcquireSlot asks for admission to a product. When granted, the slot insert
// and the token issue commit together.
func (a *allocationUseCase) AcquireSlot(
	ctx context.Context,
	subject uuid.UUID,
	productID uuid.UUID,
) (*AcquireSlotOutput, error) {
	var output *AcquireSlotOutput

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		decision, err := a.ledgerUseCase.Acquire(ctx, subject, productID, a.slotLeaseTTL)
		if err != nil {
			return err
		}

		if !decision.Granted {
			output = &AcquireSlotOutput{Granted: false}
			return nil
		}

		issued, err := a.tokenUseCase.Issue(
			ctx, decision.Slot.ID, tokenDomain.ProductFetchPurpose, a.tokenTTL,
		)
		if err != nil {
			return err
		}

		output = &AcquireSlotOutput{
			Granted:        true,
			SlotID:         decision.Slot.ID,
			SlotExpiresAt:  decision.Slot.ExpiresAt,
			PlainToken:     issued.PlainToken,
			TokenExpiresAt: issued.Token.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "granted"
	if !output.Granted {
		outcome = "wait"
	}
	a.auditSink.Emit(ctx, subject, "acquire_slot", outcome, map[string]any{
		"product_id": productID.String(),
	})
	return output, nil
}

// ReleaseSlot moves a granted slot to the terminal status for outcome.
func (a *allocationUseCase) ReleaseSlot(
	ctx context.Context,
	slotID uuid.UUID,
	outcome ledgerDomain.Outcome,
) error {
	var released *ledgerDomain.Slot

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		released, err = a.ledgerUseCase.Release(ctx, slotID, outcome)
		return err
	})
	if err != nil {
		return err
	}

	a.auditSink.Emit(ctx, released.Subject, "release_slot", string(released.Status), map[string]any{
		"slot_id":    slotID.String(),
		"product_id": released.ProductID.String(),
	})
	return nil
}

// FetchProductPayload consumes a product-fetch token and returns the decrypted
// payload of the product behind the token's slot. A slot that has already left
// the granted state no longer authorizes a fetch.
func (a *allocationUseCase) FetchProductPayload(
	ctx context.Context,
	plainToken string,
) (*FetchOutput, error) {
	var output *FetchOutput

	err := a.txManager.WithTx(ctx, func(ctx context.Context) error {
		token, err := a.tokenUseCase.ValidateAndConsume(ctx, plainToken)
		if err != nil {
			return err
		}
		if token.Purpose != tokenDomain.ProductFetchPurpose {
			return a.rejectFetch(ctx, token.ID, "wrong_purpose")
		}

		slot, err := a.ledgerUseCase.Get(ctx, token.Subject)
		if err != nil {
			return err
		}
		if !slot.IsGranted() {
			return a.rejectFetch(ctx, token.ID, "slot_not_granted")
		}

		product, err := a.catalog.Get(ctx, slot.ProductID)
		if err != nil {
			return err
		}

		payload, err := a.payloadCipher.Decrypt(ctx, product.EncryptedPayload)
		if err != nil {
			return apperrors.Wrap(err, "failed to decrypt product payload")
		}

		output = &FetchOutput{Subject: slot.Subject, Payload: payload}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.auditSink.Emit(ctx, output.Subject, "fetch_product_payload", "delivered", nil)
	return output, nil
}

// rejectFetch logs the internal rejection reason and returns the opaque
// boundary error.
func (a *allocationUseCase) rejectFetch(ctx context.Context, tokenID uuid.UUID, reason string) error {
	a.logger.WarnContext(ctx, "payload fetch rejected",
		slog.String("token_id", tokenID.String()),
		slog.String("reason", reason),
	)
	return apperrors.ErrInvalidToken
}
