/*
renewal.go - The renewal engine

PURPOSE:
  Extends a pawn contract's due date by one calendar month, optionally
  applying a client contribution that pays down the outstanding balance.
  Each renewal appends an immutable record; the highest version is the
  contract's current state.

ALGORITHM:
  1. Load contract; reject purchases and redeemed contracts
  2. Reference date  = latest renewal's due date, else contract final date
  3. New due date    = reference + 1 calendar month
  4. Balance         = latest renewal's amount, else contract amount
  5. Reject contribution < 0 or > balance (nothing persisted)
  6. Allocate contribution across products, highest amount first
  7. Append Renewal{version: max+1, amount: balance - contribution}
  8. Steps 6-7 run in ONE store transaction
  9. Generate the renewal document (reported, never rolled back)

SEE ALSO:
  - ledger.go: Allocation order and conservation invariant
  - redeem.go: The terminal transition
*/
package pawn

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RENEWAL ENGINE
// =============================================================================

// RenewalEngine performs renewal transitions against an injected store and
// document generator. Now is swappable for tests.
type RenewalEngine struct {
	Store TxStore
	Docs  DocumentGenerator
	Now   func() time.Time
}

func NewRenewalEngine(store TxStore, docs DocumentGenerator) *RenewalEngine {
	return &RenewalEngine{Store: store, Docs: docs, Now: time.Now}
}

// RenewalResult reports a committed renewal.
type RenewalResult struct {
	Renewal  Renewal
	Contract Contract
	Products []Product // post-allocation state
}

// Renew applies one renewal cycle to the contract.
//
// On success the renewal is committed and the result describes it. If the
// error wraps ErrDocumentGeneration the renewal IS committed and only the
// paperwork failed; the result is returned alongside so the caller can
// retry rendering. Any other error means nothing was persisted.
func (e *RenewalEngine) Renew(ctx context.Context, contractID string, contribution decimal.Decimal) (*RenewalResult, error) {
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
	if contribution.IsNegative() {
		return nil, ErrNegativeContribution
	}

	latest, err := e.Store.LatestRenewal(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load latest renewal for %s: %w", contractID, err)
	}

	var reference time.Time
	balance := contract.Amount
	if latest != nil {
		reference = latest.DueDate
		balance = latest.Amount
	} else {
		if contract.FinalDate == nil {
			return nil, ErrMissingDueDate
		}
		reference = *contract.FinalDate
	}

	if contribution.GreaterThan(balance) {
		return nil, &ContributionError{Balance: balance, Contribution: contribution}
	}

	renewal := Renewal{
		ContractID: contractID,
		Date:       DateOnly(e.Now()),
		DueDate:    NextDueDate(reference),
		Amount:     RoundCents(balance.Sub(contribution)),
	}

	var products []Product
	err = e.Store.WithTx(ctx, func(s Store) error {
		current, err := s.ProductsByContract(ctx, contractID)
		if err != nil {
			return fmt.Errorf("load products for %s: %w", contractID, err)
		}

		for _, p := range AllocatePayoff(current, contribution) {
			if err := s.UpdateProduct(ctx, p); err != nil {
				return fmt.Errorf("update product %d: %w", p.ID, err)
			}
		}

		version, err := s.LatestVersion(ctx, contractID)
		if err != nil {
			return fmt.Errorf("load latest version for %s: %w", contractID, err)
		}
		renewal.Version = version + 1

		if err := s.SaveRenewal(ctx, &renewal); err != nil {
			return fmt.Errorf("append renewal v%d for %s: %w", renewal.Version, contractID, err)
		}

		products, err = s.ProductsByContract(ctx, contractID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &RenewalResult{Renewal: renewal, Contract: *contract, Products: products}

	client, err := e.Store.FindClient(ctx, contract.ClientID)
	if err != nil || client == nil {
		return result, &DocumentError{ContractID: contractID, Kind: "renewal",
			Err: fmt.Errorf("client %s unavailable: %v", contract.ClientID, err)}
	}
	if err := e.Docs.GenerateRenewalDocument(ctx, *client, *contract, products, renewal); err != nil {
		return result, &DocumentError{ContractID: contractID, Kind: "renewal", Err: err}
	}
	return result, nil
}
