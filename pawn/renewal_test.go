package pawn_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/goldline/pawn-engine/pawn"
	"github.com/goldline/pawn-engine/pawn/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func fixedNow() time.Time {
	return time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)
}

type fixture struct {
	store   *store.TxMemory
	service *pawn.Service
	renew   *pawn.RenewalEngine
	redeem  *pawn.RedemptionEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewTxMemory()

	f := &fixture{
		store:   s,
		service: pawn.NewService(s, pawn.NopDocumentGenerator{}),
		renew:   pawn.NewRenewalEngine(s, pawn.NopDocumentGenerator{}),
		redeem:  pawn.NewRedemptionEngine(s, pawn.NopDocumentGenerator{}),
	}
	f.service.Now = fixedNow
	f.renew.Now = fixedNow
	f.redeem.Now = fixedNow

	if err := f.service.CreateClient(context.Background(), pawn.Client{
		NationalID: "12345678Z",
		Name:       "Maria",
		Surname:    "Santos",
	}); err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	return f
}

// newPawnContract opens a pawn with products A=30, B=50, C=20 (total 100).
func (f *fixture) newPawnContract(t *testing.T) *pawn.Contract {
	t.Helper()
	contract, err := f.service.CreateContract(context.Background(), pawn.CreateContractInput{
		ClientID: "12345678Z",
		Type:     pawn.Pawn,
		Products: []pawn.ProductInput{
			{Quantity: 1, Description: "A", Weight: dec("1"), PricePerGram: dec("30")},
			{Quantity: 1, Description: "B", Weight: dec("1"), PricePerGram: dec("50")},
			{Quantity: 1, Description: "C", Weight: dec("1"), PricePerGram: dec("20")},
		},
	})
	if err != nil {
		t.Fatalf("failed to create contract: %v", err)
	}
	return contract
}

func amountsByDescription(products []pawn.Product) map[string]decimal.Decimal {
	m := map[string]decimal.Decimal{}
	for _, p := range products {
		m[p.Description] = p.Amount
	}
	return m
}

// =============================================================================
// RENEWAL TESTS
// =============================================================================

func TestRenew_FirstCycle_UsesContractFinalDate(t *testing.T) {
	// GIVEN: A fresh pawn with no renewals (final date = start + 30 days)
	// WHEN: Renewing without a contribution
	// THEN: Version 1, due date = final date + 1 month, amount = full balance

	f := newFixture(t)
	contract := f.newPawnContract(t)

	result, err := f.renew.Renew(context.Background(), contract.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Renewal.Version != 1 {
		t.Errorf("expected version 1, got %d", result.Renewal.Version)
	}
	wantDue := pawn.NextDueDate(*contract.FinalDate)
	if !result.Renewal.DueDate.Equal(wantDue) {
		t.Errorf("expected due date %v, got %v", wantDue, result.Renewal.DueDate)
	}
	if !result.Renewal.Amount.Equal(contract.Amount) {
		t.Errorf("expected amount %v, got %v", contract.Amount, result.Renewal.Amount)
	}
}

func TestRenew_SecondCycle_ChainsFromLatestRenewal(t *testing.T) {
	// GIVEN: A pawn renewed once with a contribution of 40
	// WHEN: Renewing again
	// THEN: Version 2, due date chains from the first renewal's due date,
	//       balance chains from the first renewal's amount

	f := newFixture(t)
	contract := f.newPawnContract(t)
	ctx := context.Background()

	first, err := f.renew.Renew(ctx, contract.ID, dec("40"))
	if err != nil {
		t.Fatalf("first renewal failed: %v", err)
	}

	second, err := f.renew.Renew(ctx, contract.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("second renewal failed: %v", err)
	}

	if second.Renewal.Version != 2 {
		t.Errorf("expected version 2, got %d", second.Renewal.Version)
	}
	wantDue := pawn.NextDueDate(first.Renewal.DueDate)
	if !second.Renewal.DueDate.Equal(wantDue) {
		t.Errorf("expected due date %v, got %v", wantDue, second.Renewal.DueDate)
	}
	if !second.Renewal.Amount.Equal(dec("60")) {
		t.Errorf("expected balance 60, got %v", second.Renewal.Amount)
	}
}

func TestRenew_ContributionAllocation(t *testing.T) {
	// GIVEN: Products A=30, B=50, C=20 and a contribution of 60
	// WHEN: Renewing
	// THEN: Post-state A=20, B=0, C=20 and renewal amount 40

	f := newFixture(t)
	contract := f.newPawnContract(t)

	result, err := f.renew.Renew(context.Background(), contract.ID, dec("60"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amounts := amountsByDescription(result.Products)
	if !amounts["A"].Equal(dec("20")) {
		t.Errorf("expected A=20, got %v", amounts["A"])
	}
	if !amounts["B"].Equal(dec("0")) {
		t.Errorf("expected B=0, got %v", amounts["B"])
	}
	if !amounts["C"].Equal(dec("20")) {
		t.Errorf("expected C=20, got %v", amounts["C"])
	}
	if !result.Renewal.Amount.Equal(dec("40")) {
		t.Errorf("expected renewal amount 40, got %v", result.Renewal.Amount)
	}
}

func TestRenew_GaplessVersions(t *testing.T) {
	// GIVEN: A pawn renewed three times
	// THEN: Versions are 1, 2, 3 with no gaps

	f := newFixture(t)
	contract := f.newPawnContract(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.renew.Renew(ctx, contract.ID, decimal.Zero); err != nil {
			t.Fatalf("renewal %d failed: %v", i+1, err)
		}
	}

	renewals, err := f.store.RenewalsByContract(ctx, contract.ID)
	if err != nil {
		t.Fatalf("failed to list renewals: %v", err)
	}
	if len(renewals) != 3 {
		t.Fatalf("expected 3 renewals, got %d", len(renewals))
	}
	for i, r := range renewals {
		if r.Version != i+1 {
			t.Errorf("renewal %d has version %d", i, r.Version)
		}
	}
}

func TestRenew_ContributionExceedsBalance_NothingPersisted(t *testing.T) {
	// GIVEN: A pawn with balance 100
	// WHEN: Renewing with a contribution of 100.01
	// THEN: ContributionError, and neither renewals nor products changed

	f := newFixture(t)
	contract := f.newPawnContract(t)
	ctx := context.Background()

	_, err := f.renew.Renew(ctx, contract.ID, dec("100.01"))

	var contribErr *pawn.ContributionError
	if !errors.As(err, &contribErr) {
		t.Fatalf("expected ContributionError, got %v", err)
	}
	if !contribErr.Balance.Equal(dec("100")) || !contribErr.Contribution.Equal(dec("100.01")) {
		t.Errorf("error fields wrong: balance=%v contribution=%v", contribErr.Balance, contribErr.Contribution)
	}
	if !pawn.IsValidation(err) {
		t.Errorf("expected a validation-class error")
	}

	renewals, _ := f.store.RenewalsByContract(ctx, contract.ID)
	if len(renewals) != 0 {
		t.Errorf("expected no renewals persisted, got %d", len(renewals))
	}
	products, _ := f.store.ProductsByContract(ctx, contract.ID)
	if !totalAmount(products).Equal(dec("100")) {
		t.Errorf("products changed: total %v", totalAmount(products))
	}
}

func TestRenew_ExactBalanceContribution_Allowed(t *testing.T) {
	f := newFixture(t)
	contract := f.newPawnContract(t)

	result, err := f.renew.Renew(context.Background(), contract.ID, dec("100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Renewal.Amount.Equal(decimal.Zero) {
		t.Errorf("expected zero balance, got %v", result.Renewal.Amount)
	}
	for _, p := range result.Products {
		if !p.Amount.Equal(decimal.Zero) {
			t.Errorf("product %s not zeroed: %v", p.Description, p.Amount)
		}
	}
}

func TestRenew_NegativeContribution_Rejected(t *testing.T) {
	f := newFixture(t)
	contract := f.newPawnContract(t)

	_, err := f.renew.Renew(context.Background(), contract.ID, dec("-1"))
	if !errors.Is(err, pawn.ErrNegativeContribution) {
		t.Errorf("expected ErrNegativeContribution, got %v", err)
	}
}

func TestRenew_PurchaseContract_Rejected(t *testing.T) {
	f := newFixture(t)
	contract, err := f.service.CreateContract(context.Background(), pawn.CreateContractInput{
		ClientID: "12345678Z",
		Type:     pawn.Purchase,
		Products: []pawn.ProductInput{
			{Quantity: 1, Description: "scrap", Weight: dec("10"), PricePerGram: dec("20")},
		},
	})
	if err != nil {
		t.Fatalf("failed to create purchase: %v", err)
	}

	_, err = f.renew.Renew(context.Background(), contract.ID, decimal.Zero)
	if !errors.Is(err, pawn.ErrNotPawn) {
		t.Errorf("expected ErrNotPawn, got %v", err)
	}
}

func TestRenew_RedeemedContract_Rejected(t *testing.T) {
	f := newFixture(t)
	contract := f.newPawnContract(t)
	ctx := context.Background()

	if _, err := f.redeem.Redeem(ctx, contract.ID); err != nil {
		t.Fatalf("redemption failed: %v", err)
	}

	_, err := f.renew.Renew(ctx, contract.ID, decimal.Zero)
	if !errors.Is(err, pawn.ErrAlreadyRedeemed) {
		t.Errorf("expected ErrAlreadyRedeemed, got %v", err)
	}
}

func TestRenew_UnknownContract(t *testing.T) {
	f := newFixture(t)

	_, err := f.renew.Renew(context.Background(), "E-20990001", decimal.Zero)
	if !errors.Is(err, pawn.ErrContractNotFound) {
		t.Errorf("expected ErrContractNotFound, got %v", err)
	}
	if !pawn.IsNotFound(err) {
		t.Errorf("expected a not-found-class error")
	}
}

// =============================================================================
// DOCUMENT FAILURE SEMANTICS
// =============================================================================

type failingDocs struct {
	pawn.NopDocumentGenerator
}

func (failingDocs) GenerateRenewalDocument(context.Context, pawn.Client, pawn.Contract, []pawn.Product, pawn.Renewal) error {
	return errors.New("printer on fire")
}

func TestRenew_DocumentFailure_RenewalStillCommitted(t *testing.T) {
	// GIVEN: A document generator that fails on renewal slips
	// WHEN: Renewing
	// THEN: The error wraps ErrDocumentGeneration, the result is returned
	//       anyway, and the renewal IS in the store

	f := newFixture(t)
	contract := f.newPawnContract(t)
	ctx := context.Background()

	f.renew.Docs = failingDocs{}
	result, err := f.renew.Renew(ctx, contract.ID, dec("10"))

	if !errors.Is(err, pawn.ErrDocumentGeneration) {
		t.Fatalf("expected ErrDocumentGeneration, got %v", err)
	}
	if result == nil {
		t.Fatal("expected result alongside the document error")
	}

	renewals, _ := f.store.RenewalsByContract(ctx, contract.ID)
	if len(renewals) != 1 {
		t.Errorf("expected renewal committed despite document failure, got %d", len(renewals))
	}
}
