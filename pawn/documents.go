/*
documents.go - Document-generation collaborator interface

PURPOSE:
  After a successful state transition the engine hands the contract data to
  an external document generator (the shop prints contracts, policies,
  renewal and redemption receipts). The engine only supplies the data; how
  documents are rendered is the collaborator's business.

FAILURE SEMANTICS:
  Generation runs AFTER the state transition has committed. A generation
  failure never rolls the transition back; engines report it as a
  *DocumentError wrapping ErrDocumentGeneration so callers can distinguish
  "recorded but not printed" from "never recorded".

SEE ALSO:
  - docgen: Template-backed implementation
  - renewal.go, redeem.go, service.go: Call sites
*/
package pawn

import (
	"context"

	"github.com/shopspring/decimal"
)

// RedemptionFee is the display-only fee shown on pawn redemption documents:
// 10% of the contract's total amount. It is never persisted and never
// enters balance arithmetic.
func RedemptionFee(c Contract) decimal.Decimal {
	if c.Type != Pawn {
		return decimal.Zero
	}
	return RoundCents(c.Amount.Mul(decimal.NewFromFloat(0.10)))
}

// DocumentGenerator renders the shop's paperwork. Implementations receive
// the full current product list (post any renewal reductions).
type DocumentGenerator interface {
	GenerateContractDocument(ctx context.Context, client Client, contract Contract, products []Product) error
	GeneratePolicyDocument(ctx context.Context, client Client, contract Contract, products []Product) error
	GenerateRenewalDocument(ctx context.Context, client Client, contract Contract, products []Product, renewal Renewal) error
	GenerateRedemptionDocument(ctx context.Context, client Client, contract Contract, products []Product) error
}

// NopDocumentGenerator discards all documents. Useful in tests and for
// callers that only want the state transitions.
type NopDocumentGenerator struct{}

func (NopDocumentGenerator) GenerateContractDocument(context.Context, Client, Contract, []Product) error {
	return nil
}
func (NopDocumentGenerator) GeneratePolicyDocument(context.Context, Client, Contract, []Product) error {
	return nil
}
func (NopDocumentGenerator) GenerateRenewalDocument(context.Context, Client, Contract, []Product, Renewal) error {
	return nil
}
func (NopDocumentGenerator) GenerateRedemptionDocument(context.Context, Client, Contract, []Product) error {
	return nil
}
