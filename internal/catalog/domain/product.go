// Package domain defines the product catalog model.
//
// A product is a shareable resource with a hard ceiling on how many subjects
// may hold it concurrently. Unlike pool credentials, products are never
// assigned exclusively; access is metered through slots in the ledger.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/handoff/internal/errors"
)

// Product domain errors.
var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = apperrors.Wrap(apperrors.ErrNotFound, "product")
)

// Product is a concurrency-limited shareable resource. MaxConcurrentSlots is
// the instantaneous ceiling on granted slots; EncryptedPayload holds the
// access material, encrypted at rest.
type Product struct {
	ID                 uuid.UUID
	Name               string
	MaxConcurrentSlots int
	EncryptedPayload   []byte
	CreatedAt          time.Time
}
