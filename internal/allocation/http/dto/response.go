package dto

import (
	"time"

	allocationUseCase "github.com/allisson/handoff/internal/allocation/usecase"
)

// ClaimedCredentialResponse pairs one claimed credential with its single-use
// handoff token. SECURITY: Token is the raw secret and appears in this response
// only; it is never stored or logged.
type ClaimedCredentialResponse struct {
	CredentialID   string    `json:"credential_id"`
	Partition      string    `json:"partition"`
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
}

// ClaimCredentialsResponse represents a successful all-or-nothing claim.
type ClaimCredentialsResponse struct {
	Credentials []ClaimedCredentialResponse `json:"credentials"`
}

// MapClaimOutputToResponse converts a claim result to an API response.
func MapClaimOutputToResponse(output *allocationUseCase.ClaimOutput) ClaimCredentialsResponse {
	credentials := make([]ClaimedCredentialResponse, 0, len(output.Credentials))
	for _, credential := range output.Credentials {
		credentials = append(credentials, ClaimedCredentialResponse{
			CredentialID:   credential.CredentialID.String(),
			Partition:      string(credential.Partition),
			Token:          credential.PlainToken,
			TokenExpiresAt: credential.TokenExpiresAt,
		})
	}
	return ClaimCredentialsResponse{Credentials: credentials}
}

// AcquireSlotResponse represents an admission decision. Status is "granted" or
// "wait"; the slot and token fields are only present on grant.
type AcquireSlotResponse struct {
	Status         string     `json:"status"`
	SlotID         string     `json:"slot_id,omitempty"`
	SlotExpiresAt  *time.Time `json:"slot_expires_at,omitempty"`
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

// MapAcquireSlotOutputToResponse converts an admission decision to an API response.
func MapAcquireSlotOutputToResponse(output *allocationUseCase.AcquireSlotOutput) AcquireSlotResponse {
	if !output.Granted {
		return AcquireSlotResponse{Status: "wait"}
	}
	slotExpiresAt := output.SlotExpiresAt
	tokenExpiresAt := output.TokenExpiresAt
	return AcquireSlotResponse{
		Status:         "granted",
		SlotID:         output.SlotID.String(),
		SlotExpiresAt:  &slotExpiresAt,
		Token:          output.PlainToken,
		TokenExpiresAt: &tokenExpiresAt,
	}
}

// HandoffResponse carries a decrypted payload released by a consumed token.
// SECURITY: Payload is plaintext; it is delivered once per token and must be
// transmitted over HTTPS in production.
type HandoffResponse struct {
	Subject string `json:"subject"`
	Payload []byte `json:"payload"`
}

// MapFetchOutputToResponse converts a redeemed handoff to an API response.
func MapFetchOutputToResponse(output *allocationUseCase.FetchOutput) HandoffResponse {
	return HandoffResponse{
		Subject: output.Subject.String(),
		Payload: output.Payload,
	}
}

// ReleaseAllResponse reports how many credentials a subject-wide release freed.
type ReleaseAllResponse struct {
	Released int64 `json:"released"`
}
