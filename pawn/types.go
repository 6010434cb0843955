/*
Package pawn provides the contract lifecycle engine for a pawn/gold-purchase shop.

PURPOSE:
  This package contains the domain types and algorithms for managing pawn
  and purchase contracts: priced line items, year-scoped identifiers, the
  renewal ledger that carries outstanding balance and due dates, and the
  terminal redemption transition.

KEY CONCEPTS IN THIS FILE (types.go):
  - Client: A shop customer, keyed by national ID
  - Contract: A pawn ("Empeno") or purchase ("Compra") agreement
  - Product: One priced line item, valued by weight x price-per-gram
  - Renewal: An immutable ledger entry extending a pawn contract's due date

DESIGN PRINCIPLES:
  1. Immutability: Renewals are never modified; the latest version is truth
  2. Precision: All euro amounts use decimal.Decimal, rounded half-up to cents
  3. Type Safety: ContractType is a sum type, not a raw string
  4. Terminal states: A redeemed contract accepts no further transitions

USAGE:
  c := pawn.Contract{Type: pawn.Pawn, ClientID: "12345678Z", ...}
  c.Products = append(c.Products, pawn.Product{Weight: w, PricePerGram: p})

SEE ALSO:
  - renewal.go: Due-date and balance derivation for renewals
  - redeem.go: The terminal redemption transition
  - store.go: Persistence interfaces
*/
package pawn

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONTRACT TYPE - Pawn vs. purchase
// =============================================================================

// ContractType distinguishes pawn contracts (with a due date and
// renewal/redemption lifecycle) from outright purchases (static).
type ContractType string

const (
	// Pawn is a loan collateralized by goods; it carries a due date and can
	// be renewed or redeemed.
	Pawn ContractType = "pawn"

	// Purchase is an outright buy with no lifecycle after creation.
	Purchase ContractType = "purchase"
)

// Valid reports whether t is a known contract type.
func (t ContractType) Valid() bool {
	return t == Pawn || t == Purchase
}

// Prefix returns the identifier prefix for the type ("E" pawn, "C" purchase).
func (t ContractType) Prefix() string {
	if t == Pawn {
		return "E"
	}
	return "C"
}

// ParseContractType converts an external string to a ContractType.
func ParseContractType(s string) (ContractType, error) {
	switch s {
	case string(Pawn):
		return Pawn, nil
	case string(Purchase):
		return Purchase, nil
	default:
		return "", &FieldError{Field: "type", Reason: "must be \"pawn\" or \"purchase\""}
	}
}

// =============================================================================
// MONEY - Two-decimal euro amounts
// =============================================================================

// RoundCents rounds a euro amount to two decimals, half-up.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineAmount computes a product's value: weight (grams) x price per gram,
// rounded to cents.
func LineAmount(weight, pricePerGram decimal.Decimal) decimal.Decimal {
	return RoundCents(weight.Mul(RoundCents(pricePerGram)))
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a shop customer. NationalID is the natural key; a client cannot
// be deleted while any contract references it.
type Client struct {
	NationalID string
	Name       string
	Surname    string
	Town       string
	Phone      string
	Address    string
}

// =============================================================================
// CONTRACT
// =============================================================================

// Contract is a pawn or purchase agreement with its owned line items.
//
// ID and PolicyID are assigned by the store at save time (see ident.go for
// the format). FinalDate is set for pawn contracts only; purchases have no
// due date. Amount equals the sum of product amounts at creation and is
// never recomputed afterwards - the renewal ledger carries the live balance.
type Contract struct {
	ID             string
	PolicyID       string // optional, "P-yyyyNNNN"; empty unless requested
	ClientID       string // owning client's national ID
	Details        string
	StartDate      time.Time
	FinalDate      *time.Time // pawn only
	Type           ContractType
	Redeemed       bool
	RedemptionDate *time.Time
	Amount         decimal.Decimal
	Products       []Product
}

// InitialTermDays is the default pawn term from creation to due date.
const InitialTermDays = 30

// TotalProductAmount sums the current amounts of the given products.
func TotalProductAmount(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Amount)
	}
	return total
}

// =============================================================================
// PRODUCT - Priced line item
// =============================================================================

// Product is one priced good within a contract. Amount starts at
// LineAmount(Weight, PricePerGram) and is only ever reduced toward zero by
// renewal payoff allocation; it never goes negative.
type Product struct {
	ID           int64
	Quantity     int
	Description  string
	Observations string
	Weight       decimal.Decimal // grams
	PricePerGram decimal.Decimal
	Amount       decimal.Decimal
	ContractID   string
}

// Validate checks the creation invariants for a line item.
func (p Product) Validate() error {
	if p.Quantity < 1 {
		return &FieldError{Field: "quantity", Reason: "must be at least 1"}
	}
	if p.Description == "" {
		return &FieldError{Field: "description", Reason: "must not be empty"}
	}
	if !p.Weight.IsPositive() {
		return &FieldError{Field: "weight", Reason: "must be positive"}
	}
	if p.PricePerGram.IsNegative() {
		return &FieldError{Field: "price_per_gram", Reason: "must not be negative"}
	}
	return nil
}

// =============================================================================
// RENEWAL - Append-only balance/due-date ledger entry
// =============================================================================

// Renewal records one renewal cycle of a pawn contract. Renewals are
// append-only; the entry with the highest Version carries the contract's
// current outstanding balance and due date.
type Renewal struct {
	ID         int64
	ContractID string
	Date       time.Time // when the renewal was performed
	DueDate    time.Time // Date reference + 1 calendar month
	Version    int       // strictly increasing per contract, from 1
	Amount     decimal.Decimal
}
