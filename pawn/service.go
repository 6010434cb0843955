/*
service.go - Contract creation and client lifecycle

PURPOSE:
  The operations around the two engines: opening contracts with their
  line items, and managing the client registry the contracts hang off.

CREATION RULES:
  - At least one product; each product is validated before anything is saved
  - Product amounts are computed as weight x price-per-gram, rounded to cents
  - The contract amount is the sum of its product amounts
  - Pawn contracts default to a 30-day term when no final date is given;
    purchase contracts never carry one
  - Identifiers are assigned by the store at save time, policy identifiers
    only when explicitly requested

CLIENT RULES:
  - National ID is unique (ErrDuplicateClient)
  - Deleting a client with contracts is rejected (ErrClientHasContracts)
  - Changing a client's national ID re-points all their contracts

SEE ALSO:
  - renewal.go, redeem.go: The lifecycle transitions after creation
*/
package pawn

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service owns contract creation and the client registry. One instance is
// wired at startup with the process-wide store; operations never construct
// their own persistence.
type Service struct {
	Store TxStore
	Docs  DocumentGenerator
	Now   func() time.Time
}

func NewService(store TxStore, docs DocumentGenerator) *Service {
	return &Service{Store: store, Docs: docs, Now: time.Now}
}

// =============================================================================
// CONTRACT CREATION
// =============================================================================

// ProductInput describes one line item at contract creation.
type ProductInput struct {
	Quantity     int
	Description  string
	Observations string
	Weight       decimal.Decimal
	PricePerGram decimal.Decimal
}

// CreateContractInput describes a new contract.
type CreateContractInput struct {
	ClientID   string
	Details    string
	Type       ContractType
	StartDate  time.Time  // zero = today
	FinalDate  *time.Time // pawn only; nil = start + 30 days
	WithPolicy bool       // also assign a policy identifier
	Products   []ProductInput
}

// CreateContract validates the input, persists the contract and its
// products atomically, and triggers the contract (and optional policy)
// document. An error wrapping ErrDocumentGeneration means the contract IS
// saved; any other error means nothing was.
func (s *Service) CreateContract(ctx context.Context, in CreateContractInput) (*Contract, error) {
	if !in.Type.Valid() {
		return nil, &FieldError{Field: "type", Reason: "must be \"pawn\" or \"purchase\""}
	}
	if len(in.Products) == 0 {
		return nil, ErrNoProducts
	}

	client, err := s.Store.FindClient(ctx, in.ClientID)
	if err != nil {
		return nil, fmt.Errorf("load client %s: %w", in.ClientID, err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}

	start := in.StartDate
	if start.IsZero() {
		start = s.Now()
	}
	start = DateOnly(start)

	contract := Contract{
		ClientID:  in.ClientID,
		Details:   in.Details,
		StartDate: start,
		Type:      in.Type,
		Amount:    decimal.Zero,
	}

	if in.Type == Pawn {
		final := DefaultFinalDate(start)
		if in.FinalDate != nil {
			final = DateOnly(*in.FinalDate)
		}
		contract.FinalDate = &final
	}

	for _, pi := range in.Products {
		p := Product{
			Quantity:     pi.Quantity,
			Description:  pi.Description,
			Observations: pi.Observations,
			Weight:       pi.Weight,
			PricePerGram: RoundCents(pi.PricePerGram),
		}
		p.Amount = LineAmount(p.Weight, p.PricePerGram)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		contract.Products = append(contract.Products, p)
	}
	contract.Amount = TotalProductAmount(contract.Products)

	if err := s.Store.SaveContract(ctx, &contract, in.WithPolicy); err != nil {
		return nil, fmt.Errorf("save contract: %w", err)
	}

	if err := s.Docs.GenerateContractDocument(ctx, *client, contract, contract.Products); err != nil {
		return &contract, &DocumentError{ContractID: contract.ID, Kind: "contract", Err: err}
	}
	if in.WithPolicy {
		if err := s.Docs.GeneratePolicyDocument(ctx, *client, contract, contract.Products); err != nil {
			return &contract, &DocumentError{ContractID: contract.ID, Kind: "policy", Err: err}
		}
	}
	return &contract, nil
}

// GetContract returns a contract with its products loaded.
func (s *Service) GetContract(ctx context.Context, id string) (*Contract, error) {
	contract, err := s.Store.FindContract(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load contract %s: %w", id, err)
	}
	if contract == nil {
		return nil, ErrContractNotFound
	}
	contract.Products, err = s.Store.ProductsByContract(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load products for %s: %w", id, err)
	}
	return contract, nil
}

// =============================================================================
// CLIENT REGISTRY
// =============================================================================

// CreateClient registers a new client.
func (s *Service) CreateClient(ctx context.Context, c Client) error {
	if c.NationalID == "" {
		return &FieldError{Field: "national_id", Reason: "must not be empty"}
	}
	if c.Name == "" {
		return &FieldError{Field: "name", Reason: "must not be empty"}
	}
	return s.Store.SaveClient(ctx, c)
}

// GetClient returns a client by national ID.
func (s *Service) GetClient(ctx context.Context, nationalID string) (*Client, error) {
	client, err := s.Store.FindClient(ctx, nationalID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// UpdateClient replaces the client stored under oldNationalID. When the
// national ID changes, every contract referencing the old ID is re-pointed
// in the same transaction.
func (s *Service) UpdateClient(ctx context.Context, c Client, oldNationalID string) error {
	if c.NationalID == "" {
		return &FieldError{Field: "national_id", Reason: "must not be empty"}
	}
	return s.Store.WithTx(ctx, func(st Store) error {
		if err := st.UpdateClient(ctx, c, oldNationalID); err != nil {
			return err
		}
		if c.NationalID != oldNationalID {
			return st.UpdateClientID(ctx, oldNationalID, c.NationalID)
		}
		return nil
	})
}

// DeleteClient removes a client, refusing while contracts reference it.
func (s *Service) DeleteClient(ctx context.Context, nationalID string) error {
	has, err := s.Store.HasContractsForClient(ctx, nationalID)
	if err != nil {
		return fmt.Errorf("check contracts for %s: %w", nationalID, err)
	}
	if has {
		return ErrClientHasContracts
	}
	return s.Store.DeleteClient(ctx, nationalID)
}
