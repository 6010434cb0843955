/*
store.go - Persistence interfaces for the contract engine

PURPOSE:
  Defines the interface between the domain logic and the database. The
  engine consumes these interfaces; it never touches SQL. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  ClientStore:   Client CRUD
  ContractStore: Contract persistence, search, identifier sequences
  ProductStore:  Line-item persistence (no delete path exists)
  RenewalStore:  Append-only renewal ledger
  Store:         All of the above
  TxStore:       Store plus WithTx for atomic multi-step mutations

CONVENTIONS:
  - Finders return (nil, nil) when the record does not exist; engines
    translate that into the ErrXxxNotFound sentinels.
  - Updates and deletes return the not-found sentinel when no row matched.
  - Renewals are append-only: RenewalStore has no update or delete.

ATOMICITY:
  Renewal writes the reduced product amounts and the new renewal record
  inside a single WithTx scope. Either everything commits or nothing does;
  a failed renewal never leaves half-updated products behind.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - pawn/store:   in-memory for tests

SEE ALSO:
  - renewal.go: Uses WithTx for the allocation + append sequence
  - ident.go:   Identifier formats behind the sequence queries
*/
package pawn

import (
	"context"
	"time"
)

// =============================================================================
// CLIENT STORE
// =============================================================================

type ClientStore interface {
	// SaveClient inserts a client. Returns ErrDuplicateClient if the
	// national ID is already taken.
	SaveClient(ctx context.Context, c Client) error

	// FindClient returns the client or (nil, nil) if absent.
	FindClient(ctx context.Context, nationalID string) (*Client, error)

	// ListClients returns all clients ordered by surname, name.
	ListClients(ctx context.Context) ([]Client, error)

	// UpdateClient replaces the client stored under oldNationalID. The
	// national ID itself may change; contracts are re-pointed separately
	// via UpdateClientID.
	UpdateClient(ctx context.Context, c Client, oldNationalID string) error

	// DeleteClient removes a client. The caller must first check
	// HasContractsForClient; the store only reports not-found.
	DeleteClient(ctx context.Context, nationalID string) error
}

// =============================================================================
// CONTRACT STORE
// =============================================================================

// ContractQuery filters Search. Zero values mean "no filter".
type ContractQuery struct {
	Text     string        // substring of contract ID or client national ID
	Type     *ContractType // nil = any type
	DateFrom *time.Time    // inclusive lower bound on StartDate
	DateTo   *time.Time    // inclusive upper bound on StartDate
}

type ContractStore interface {
	// SaveContract persists the contract and its products atomically,
	// assigning c.ID (and c.PolicyID when withPolicy) and product IDs.
	SaveContract(ctx context.Context, c *Contract, withPolicy bool) error

	// FindContract returns the contract (without products) or (nil, nil).
	FindContract(ctx context.Context, id string) (*Contract, error)

	// ListContracts returns all contracts ordered by start date descending.
	ListContracts(ctx context.Context) ([]Contract, error)

	// FindByClientAndType returns a client's contracts of one type.
	FindByClientAndType(ctx context.Context, nationalID string, t ContractType) ([]Contract, error)

	// SearchContracts returns contracts matching the query filters.
	SearchContracts(ctx context.Context, q ContractQuery) ([]Contract, error)

	// UpdateContract replaces all mutable contract fields.
	UpdateContract(ctx context.Context, c Contract) error

	// HasContractsForClient reports whether any contract references the client.
	HasContractsForClient(ctx context.Context, nationalID string) (bool, error)

	// UpdateClientID re-points every contract from old to new national ID.
	UpdateClientID(ctx context.Context, oldID, newID string) error

	// NextContractSequence returns max existing sequence for type+year, +1.
	NextContractSequence(ctx context.Context, t ContractType, year int) (int, error)

	// NextPolicySequence returns max existing policy sequence for year, +1.
	NextPolicySequence(ctx context.Context, year int) (int, error)
}

// =============================================================================
// PRODUCT STORE
// =============================================================================

// ProductStore persists line items. There is deliberately no delete: no
// operation in the lifecycle removes a product once its contract is saved.
type ProductStore interface {
	// SaveProduct inserts a product, assigning p.ID.
	SaveProduct(ctx context.Context, p *Product) error

	// FindProduct returns the product or (nil, nil).
	FindProduct(ctx context.Context, id int64) (*Product, error)

	// ProductsByContract returns a contract's products ordered by ID.
	ProductsByContract(ctx context.Context, contractID string) ([]Product, error)

	// UpdateProduct replaces all mutable product fields.
	UpdateProduct(ctx context.Context, p Product) error
}

// =============================================================================
// RENEWAL STORE - Append-only
// =============================================================================

type RenewalStore interface {
	// SaveRenewal appends a renewal, assigning r.ID. No update, no delete.
	SaveRenewal(ctx context.Context, r *Renewal) error

	// RenewalsByContract returns all renewals ordered by version ascending.
	RenewalsByContract(ctx context.Context, contractID string) ([]Renewal, error)

	// LatestRenewal returns the highest-version renewal or (nil, nil).
	LatestRenewal(ctx context.Context, contractID string) (*Renewal, error)

	// LatestVersion returns the highest version, 0 if none exist.
	LatestVersion(ctx context.Context, contractID string) (int, error)
}

// =============================================================================
// COMBINED / TRANSACTIONAL STORE
// =============================================================================

// Store is the full persistence collaborator the engine is wired with.
type Store interface {
	ClientStore
	ContractStore
	ProductStore
	RenewalStore
}

// TxStore wraps Store with transaction support.
//
// WithTx executes fn against a Store bound to one transaction. If fn
// returns an error the transaction is rolled back, otherwise committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
