/*
redeem.go - The redemption engine

PURPOSE:
  Redemption is the terminal transition of a pawn contract: the client
  settles and reclaims the goods. The contract's redeemed flag and
  redemption date are stamped; afterwards no renewal or second redemption
  is possible.

GUARDS:
  - Purchase contracts cannot be redeemed (ErrNotPawn)
  - An already-redeemed contract is rejected with ErrAlreadyRedeemed and
    left completely untouched (idempotent-safe rejection, not a crash)

SEE ALSO:
  - renewal.go: The non-terminal transition
  - documents.go: RedemptionFee, the display-only 10% figure
*/
package pawn

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REDEMPTION ENGINE
// =============================================================================

type RedemptionEngine struct {
	Store TxStore
	Docs  DocumentGenerator
	Now   func() time.Time
}

func NewRedemptionEngine(store TxStore, docs DocumentGenerator) *RedemptionEngine {
	return &RedemptionEngine{Store: store, Docs: docs, Now: time.Now}
}

// RedemptionResult reports a committed redemption. Fee is the display-only
// redemption fee for the document template; it is not persisted.
type RedemptionResult struct {
	Contract Contract
	Products []Product
	Fee      decimal.Decimal
}

// Redeem marks the contract redeemed and stamps the redemption date.
//
// As with Renew, an error wrapping ErrDocumentGeneration means the
// redemption IS committed and only the document failed.
func (e *RedemptionEngine) Redeem(ctx context.Context, contractID string) (*RedemptionResult, error) {
	contract, err := e.Store.FindContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract %s: %w", contractID, err)
	}
	if contract == nil {
		return nil, ErrContractNotFound
	}
	if contract.Type != Pawn {
		return nil, ErrNotPawn
	}
	if contract.Redeemed {
		return nil, ErrAlreadyRedeemed
	}

	now := DateOnly(e.Now())
	contract.Redeemed = true
	contract.RedemptionDate = &now
	if err := e.Store.UpdateContract(ctx, *contract); err != nil {
		return nil, fmt.Errorf("redeem contract %s: %w", contractID, err)
	}

	products, err := e.Store.ProductsByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load products for %s: %w", contractID, err)
	}

	result := &RedemptionResult{
		Contract: *contract,
		Products: products,
		Fee:      RedemptionFee(*contract),
	}

	client, err := e.Store.FindClient(ctx, contract.ClientID)
	if err != nil || client == nil {
		return result, &DocumentError{ContractID: contractID, Kind: "redemption",
			Err: fmt.Errorf("client %s unavailable: %v", contract.ClientID, err)}
	}
	if err := e.Docs.GenerateRedemptionDocument(ctx, *client, *contract, products); err != nil {
		return result, &DocumentError{ContractID: contractID, Kind: "redemption", Err: err}
	}
	return result, nil
}
