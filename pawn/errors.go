/*
errors.go - Centralized error types for the contract engine

PURPOSE:
  All domain error types in one place for consistency and discoverability.
  Callers (HTTP layer, CLI) classify errors with the Is* helpers instead of
  string matching.

ERROR CATEGORIES:
  1. Validation errors - bad input, business rule violations; nothing persisted
  2. Not-found errors  - referenced client/contract/product does not exist
  3. Conflict errors   - transition attempted on a terminal contract
  4. Persistence errors - store failures, wrapped with %w and propagated

USAGE:
  if pawn.IsConflict(err) {
      // contract already redeemed; show the message, don't crash
  }

SEE ALSO:
  - renewal.go, redeem.go: Produce these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package pawn

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientNotFound is returned when a referenced client does not exist.
	ErrClientNotFound = errors.New("client not found")

	// ErrContractNotFound is returned when a referenced contract does not exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrProductNotFound is returned when a referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrRenewalNotFound is returned when a contract has no renewals yet and
	// one was explicitly required.
	ErrRenewalNotFound = errors.New("renewal not found")

	// ErrDuplicateClient is returned when saving a client whose national ID
	// already exists.
	ErrDuplicateClient = errors.New("client with this national ID already exists")

	// ErrClientHasContracts is returned when deleting a client that still
	// owns contracts.
	ErrClientHasContracts = errors.New("client has contracts and cannot be deleted")

	// ErrNoProducts is returned when creating a contract with an empty
	// product set.
	ErrNoProducts = errors.New("contract requires at least one product")

	// ErrAlreadyRedeemed is returned when renewing or redeeming a contract
	// that has already been redeemed. The contract is terminal.
	ErrAlreadyRedeemed = errors.New("contract already redeemed")

	// ErrNotPawn is returned when a lifecycle transition (renew, redeem) is
	// attempted on a purchase contract.
	ErrNotPawn = errors.New("operation only applies to pawn contracts")

	// ErrContributionExceedsBalance is returned when a renewal contribution
	// is greater than the current outstanding balance.
	ErrContributionExceedsBalance = errors.New("contribution exceeds outstanding balance")

	// ErrNegativeContribution is returned when a renewal contribution is
	// negative.
	ErrNegativeContribution = errors.New("contribution must not be negative")

	// ErrMissingDueDate is returned when a pawn contract has no final date
	// and no renewal to derive the reference date from.
	ErrMissingDueDate = errors.New("contract has no due date to renew from")

	// ErrDocumentGeneration marks a document-rendering failure AFTER the
	// state transition was committed. The renewal/redemption is recorded;
	// only the paperwork is missing.
	ErrDocumentGeneration = errors.New("document generation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ContributionError reports a contribution that exceeds the outstanding
// balance, with both figures for the operator's message.
type ContributionError struct {
	Balance      decimal.Decimal
	Contribution decimal.Decimal
}

func (e *ContributionError) Error() string {
	return fmt.Sprintf("contribution %s exceeds outstanding balance %s",
		e.Contribution.StringFixed(2), e.Balance.StringFixed(2))
}

func (e *ContributionError) Unwrap() error {
	return ErrContributionExceedsBalance
}

// FieldError reports an invalid or missing input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DocumentError wraps a generator failure, keeping the committed operation's
// identity so the caller can retry the rendering alone.
type DocumentError struct {
	ContractID string
	Kind       string // "contract", "policy", "renewal", "redemption"
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s document for %s: %v", e.Kind, e.ContractID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return ErrDocumentGeneration
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether the error is caused by invalid client input.
func IsValidation(err error) bool {
	var fe *FieldError
	return errors.Is(err, ErrNoProducts) ||
		errors.Is(err, ErrContributionExceedsBalance) ||
		errors.Is(err, ErrNegativeContribution) ||
		errors.Is(err, ErrNotPawn) ||
		errors.Is(err, ErrMissingDueDate) ||
		errors.As(err, &fe)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrRenewalNotFound)
}

// IsConflict reports whether the error is a rejected transition on a
// terminal contract, a duplicate registration, or a blocked deletion.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyRedeemed) ||
		errors.Is(err, ErrDuplicateClient) ||
		errors.Is(err, ErrClientHasContracts)
}
