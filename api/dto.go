/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as decimal strings ("123.45"), never floats. The shop's
  ledger is exact; the API keeps it that way.

SEE ALSO:
  - handlers.go: Uses these types
  - pawn/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldline/pawn-engine/pawn"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ClientDTO represents a client in API responses.
type ClientDTO struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Surname    string `json:"surname,omitempty"`
	Town       string `json:"town,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}

// ContractDTO represents a contract in API responses.
type ContractDTO struct {
	ID             string       `json:"id"`
	PolicyID       string       `json:"policy_id,omitempty"`
	ClientID       string       `json:"client_id"`
	Details        string       `json:"details,omitempty"`
	Type           string       `json:"type"`
	StartDate      string       `json:"start_date"`
	FinalDate      *string      `json:"final_date,omitempty"`
	Redeemed       bool         `json:"redeemed"`
	RedemptionDate *string      `json:"redemption_date,omitempty"`
	Amount         string       `json:"amount"`
	Products       []ProductDTO `json:"products,omitempty"`
}

// ProductDTO represents a contract line item.
type ProductDTO struct {
	ID           int64  `json:"id"`
	Quantity     int    `json:"quantity"`
	Description  string `json:"description"`
	Observations string `json:"observations,omitempty"`
	Weight       string `json:"weight"`
	PricePerGram string `json:"price_per_gram"`
	Amount       string `json:"amount"`
}

// RenewalDTO represents one renewal cycle.
type RenewalDTO struct {
	ID         int64  `json:"id"`
	ContractID string `json:"contract_id"`
	Date       string `json:"date"`
	DueDate    string `json:"due_date"`
	Version    int    `json:"version"`
	Amount     string `json:"amount"`
}

// CreateClientRequest is the request to register a client.
type CreateClientRequest struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Surname    string `json:"surname,omitempty"`
	Town       string `json:"town,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
}

// CreateContractRequest is the request to open a contract.
type CreateContractRequest struct {
	ClientID   string                 `json:"client_id"`
	Type       string                 `json:"type"` // "pawn" or "purchase"
	Details    string                 `json:"details,omitempty"`
	StartDate  string                 `json:"start_date,omitempty"` // YYYY-MM-DD, default today
	FinalDate  string                 `json:"final_date,omitempty"` // pawn only
	WithPolicy bool                   `json:"with_policy,omitempty"`
	Products   []CreateProductRequest `json:"products"`
}

// CreateProductRequest is one line item in a contract request.
type CreateProductRequest struct {
	Quantity     int    `json:"quantity"`
	Description  string `json:"description"`
	Observations string `json:"observations,omitempty"`
	Weight       string `json:"weight"`         // grams, decimal string
	PricePerGram string `json:"price_per_gram"` // decimal string
}

// RenewRequest is the request to renew a pawn contract.
type RenewRequest struct {
	Contribution string `json:"contribution,omitempty"` // decimal string, default 0
}

// RenewResponse reports a committed renewal.
type RenewResponse struct {
	Renewal  RenewalDTO   `json:"renewal"`
	Products []ProductDTO `json:"products"`
	Document string       `json:"document_error,omitempty"`
}

// RedeemResponse reports a committed redemption.
type RedeemResponse struct {
	Contract ContractDTO `json:"contract"`
	Fee      string      `json:"fee"`
	Document string      `json:"document_error,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toClientDTO(c pawn.Client) ClientDTO {
	return ClientDTO{
		NationalID: c.NationalID,
		Name:       c.Name,
		Surname:    c.Surname,
		Town:       c.Town,
		Phone:      c.Phone,
		Address:    c.Address,
	}
}

func toContractDTO(c pawn.Contract) ContractDTO {
	dto := ContractDTO{
		ID:             c.ID,
		PolicyID:       c.PolicyID,
		ClientID:       c.ClientID,
		Details:        c.Details,
		Type:           string(c.Type),
		StartDate:      c.StartDate.Format(dateLayout),
		FinalDate:      formatDatePtr(c.FinalDate),
		Redeemed:       c.Redeemed,
		RedemptionDate: formatDatePtr(c.RedemptionDate),
		Amount:         c.Amount.StringFixed(2),
	}
	for _, p := range c.Products {
		dto.Products = append(dto.Products, toProductDTO(p))
	}
	return dto
}

func toProductDTO(p pawn.Product) ProductDTO {
	return ProductDTO{
		ID:           p.ID,
		Quantity:     p.Quantity,
		Description:  p.Description,
		Observations: p.Observations,
		Weight:       p.Weight.String(),
		PricePerGram: p.PricePerGram.StringFixed(2),
		Amount:       p.Amount.StringFixed(2),
	}
}

func toProductDTOs(products []pawn.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return dtos
}

func toRenewalDTO(r pawn.Renewal) RenewalDTO {
	return RenewalDTO{
		ID:         r.ID,
		ContractID: r.ContractID,
		Date:       r.Date.Format(dateLayout),
		DueDate:    r.DueDate.Format(dateLayout),
		Version:    r.Version,
		Amount:     r.Amount.StringFixed(2),
	}
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func parseDecimalField(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
