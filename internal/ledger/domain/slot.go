// Package domain defines the slot ledger model.
//
// A slot records one subject's hold on one product. Admission is decided
// instantaneously against the product's concurrency ceiling; there is no queue
// and no reservation of future capacity. A slot leaves the granted state
// exactly once and never returns to it.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/handoff/internal/errors"
)

// Status is the lifecycle state of a slot. Granted is the only live state;
// the three released states are terminal.
type Status string

const (
	// GrantedStatus counts against the product's concurrency ceiling.
	GrantedStatus Status = "granted"
	// ReleasedSuccessStatus records a voluntary release after normal use.
	ReleasedSuccessStatus Status = "released-success"
	// ReleasedErrorStatus records a release where the subject reported failure.
	ReleasedErrorStatus Status = "released-error"
	// ReapedExpiredStatus records a lease that the reaper expired.
	ReapedExpiredStatus Status = "reaped-expired"
)

// Outcome selects the terminal status of a voluntary release.
type Outcome string

const (
	// SuccessOutcome releases the slot as released-success.
	SuccessOutcome Outcome = "success"
	// ErrorOutcome releases the slot as released-error.
	ErrorOutcome Outcome = "error"
)

// Slot domain errors.
var (
	// ErrSlotNotFound indicates the slot does not exist.
	ErrSlotNotFound = apperrors.Wrap(apperrors.ErrNotFound, "slot")
)

// Slot is one subject's hold on one product. ExpiresAt bounds the lease; a
// granted slot past it is eligible for reaping but still counts against the
// ceiling until the reaper gets to it.
type Slot struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Subject    uuid.UUID
	Status     Status
	ExpiresAt  time.Time
	ReleasedAt *time.Time
	CreatedAt  time.Time
}

// IsGranted reports whether the slot still counts against the ceiling.
func (s *Slot) IsGranted() bool {
	return s.Status == GrantedStatus
}

// StatusForOutcome maps a release outcome to its terminal status.
func StatusForOutcome(outcome Outcome) (Status, bool) {
	switch outcome {
	case SuccessOutcome:
		return ReleasedSuccessStatus, true
	case ErrorOutcome:
		return ReleasedErrorStatus, true
	}
	return "", false
}
