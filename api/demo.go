/*
demo.go - Demo data seeding

PURPOSE:
  Seeds the store with a small, realistic data set so the frontend and
  manual API exploration have something to chew on: a handful of clients,
  open pawn contracts, one renewed contract and one redeemed one.

  Seeding goes through the same Service/engine paths as real traffic, so
  identifiers, amounts and renewal ledgers come out exactly as production
  writes them.

USAGE:
  POST /api/demo/seed

SEE ALSO:
  - handlers.go: The production paths seeding exercises
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldline/pawn-engine/pawn"
)

// SeedDemoData populates the store with demo clients and contracts.
// POST /api/demo/seed
func (h *Handler) SeedDemoData(w http.ResponseWriter, r *http.Request) {
	summary, err := h.seedDemo(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type demoSummary struct {
	Clients   []string `json:"clients"`
	Contracts []string `json:"contracts"`
}

func (h *Handler) seedDemo(ctx context.Context) (*demoSummary, error) {
	clients := []pawn.Client{
		{NationalID: "11111111A", Name: "Maria", Surname: "Santos", Town: "Sevilla", Phone: "600111222", Address: "Calle Sierpes 4"},
		{NationalID: "22222222B", Name: "Juan", Surname: "Perez", Town: "Sevilla", Phone: "600333444", Address: "Avenida de la Paz 18"},
		{NationalID: "33333333C", Name: "Carmen", Surname: "Lopez", Town: "Dos Hermanas", Phone: "600555666", Address: "Plaza Mayor 2"},
	}
	summary := &demoSummary{}
	for _, c := range clients {
		if err := h.Service.CreateClient(ctx, c); err != nil && !errors.Is(err, pawn.ErrDuplicateClient) {
			return nil, fmt.Errorf("seed client %s: %w", c.NationalID, err)
		}
		summary.Clients = append(summary.Clients, c.NationalID)
	}

	start := time.Now().AddDate(0, -2, 0)

	// An open pawn with two items, renewed once with a partial contribution.
	renewed, err := h.Service.CreateContract(ctx, pawn.CreateContractInput{
		ClientID:  "11111111A",
		Details:   "Family jewellery",
		Type:      pawn.Pawn,
		StartDate: start,
		Products: []pawn.ProductInput{
			{Quantity: 1, Description: "18k gold chain", Weight: decimal.NewFromFloat(12.5), PricePerGram: decimal.NewFromInt(30)},
			{Quantity: 2, Description: "Gold rings", Weight: decimal.NewFromFloat(6.2), PricePerGram: decimal.NewFromInt(28)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("seed pawn contract: %w", err)
	}
	summary.Contracts = append(summary.Contracts, renewed.ID)
	if _, err := h.Renewals.Renew(ctx, renewed.ID, decimal.NewFromInt(100)); err != nil {
		return nil, fmt.Errorf("seed renewal for %s: %w", renewed.ID, err)
	}

	// A pawn opened with a policy, then redeemed.
	redeemed, err := h.Service.CreateContract(ctx, pawn.CreateContractInput{
		ClientID:   "22222222B",
		Type:       pawn.Pawn,
		StartDate:  start,
		WithPolicy: true,
		Products: []pawn.ProductInput{
			{Quantity: 1, Description: "Gold bracelet", Weight: decimal.NewFromFloat(21.0), PricePerGram: decimal.NewFromInt(29)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("seed policy pawn: %w", err)
	}
	summary.Contracts = append(summary.Contracts, redeemed.ID)
	if _, err := h.Redemption.Redeem(ctx, redeemed.ID); err != nil {
		return nil, fmt.Errorf("seed redemption for %s: %w", redeemed.ID, err)
	}

	// A straight purchase; no due date, no renewals.
	purchase, err := h.Service.CreateContract(ctx, pawn.CreateContractInput{
		ClientID: "33333333C",
		Details:  "Broken jewellery by weight",
		Type:     pawn.Purchase,
		Products: []pawn.ProductInput{
			{Quantity: 5, Description: "Scrap gold pieces", Observations: "mixed karat", Weight: decimal.NewFromFloat(34.8), PricePerGram: decimal.NewFromInt(22)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("seed purchase contract: %w", err)
	}
	summary.Contracts = append(summary.Contracts, purchase.ID)

	return summary, nil
}
