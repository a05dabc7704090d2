// Package validation provides custom validation rules for the application.
package validation

import (
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/handoff/internal/errors"
	ledgerDomain "github.com/allisson/handoff/internal/ledger/domain"
	poolDomain "github.com/allisson/handoff/internal/pool/domain"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Partition validates that a string names a known pool partition.
var Partition = validation.NewStringRuleWithError(
	func(s string) bool {
		return poolDomain.ValidPartition(poolDomain.Partition(s))
	},
	validation.NewError(
		"validation_partition",
		"must be one of: user-requestable, auto-assign, reserved",
	),
)

// ReleaseOutcome validates that a string names a voluntary release outcome.
var ReleaseOutcome = validation.NewStringRuleWithError(
	func(s string) bool {
		_, ok := ledgerDomain.StatusForOutcome(ledgerDomain.Outcome(s))
		return ok
	},
	validation.NewError("validation_release_outcome", "must be one of: success, error"),
)

// UUIDString validates that a string parses as a UUID.
var UUIDString = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
