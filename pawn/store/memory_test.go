package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/goldline/pawn-engine/pawn"
	"github.com/goldline/pawn-engine/pawn/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedClient(t *testing.T, s pawn.Store) {
	t.Helper()
	require.NoError(t, s.SaveClient(context.Background(), pawn.Client{
		NationalID: "12345678Z",
		Name:       "Maria",
		Surname:    "Santos",
	}))
}

func newContract(start time.Time, typ pawn.ContractType) *pawn.Contract {
	final := start.AddDate(0, 0, 30)
	c := &pawn.Contract{
		ClientID:  "12345678Z",
		StartDate: start,
		Type:      typ,
		Amount:    decimal.NewFromInt(100),
		Products: []pawn.Product{
			{Quantity: 1, Description: "chain", Weight: decimal.NewFromInt(10),
				PricePerGram: decimal.NewFromInt(10), Amount: decimal.NewFromInt(100)},
		},
	}
	if typ == pawn.Pawn {
		c.FinalDate = &final
	}
	return c
}

// =============================================================================
// IDENTIFIER ASSIGNMENT
// =============================================================================

func TestMemory_SaveContract_AssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedClient(t, s)

	a := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, a, false))
	require.Equal(t, "E-20250001", a.ID)

	b := newContract(day(2025, time.March, 2), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, b, true))
	require.Equal(t, "E-20250002", b.ID)
	require.Equal(t, "P-20250001", b.PolicyID)

	// Purchase sequence is independent of the pawn sequence.
	c := newContract(day(2025, time.March, 3), pawn.Purchase)
	require.NoError(t, s.SaveContract(ctx, c, false))
	require.Equal(t, "C-20250001", c.ID)

	// A different year restarts at 1.
	d := newContract(day(2026, time.January, 5), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, d, false))
	require.Equal(t, "E-20260001", d.ID)
}

func TestMemory_SaveContract_AssignsProductIDs(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	products, err := s.ProductsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotZero(t, products[0].ID)
	require.Equal(t, c.ID, products[0].ContractID)
}

// =============================================================================
// FINDERS AND UPDATES
// =============================================================================

func TestMemory_FindContract_MissingReturnsNilNil(t *testing.T) {
	s := store.NewMemory()

	c, err := s.FindContract(context.Background(), "E-20990001")
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestMemory_UpdateContract_MissingReturnsSentinel(t *testing.T) {
	s := store.NewMemory()

	err := s.UpdateContract(context.Background(), pawn.Contract{ID: "E-20990001"})
	require.ErrorIs(t, err, pawn.ErrContractNotFound)
}

func TestMemory_SaveClient_Duplicate(t *testing.T) {
	s := store.NewMemory()
	seedClient(t, s)

	err := s.SaveClient(context.Background(), pawn.Client{NationalID: "12345678Z", Name: "Other"})
	require.ErrorIs(t, err, pawn.ErrDuplicateClient)
}

func TestMemory_SearchContracts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedClient(t, s)

	a := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, a, false))
	b := newContract(day(2025, time.June, 1), pawn.Purchase)
	require.NoError(t, s.SaveContract(ctx, b, false))

	// Text match on contract id
	found, err := s.SearchContracts(ctx, pawn.ContractQuery{Text: a.ID})
	require.NoError(t, err)
	require.Len(t, found, 1)

	// Type filter
	pawnType := pawn.Pawn
	found, err = s.SearchContracts(ctx, pawn.ContractQuery{Type: &pawnType})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, a.ID, found[0].ID)

	// Date window excluding March
	from := day(2025, time.May, 1)
	found, err = s.SearchContracts(ctx, pawn.ContractQuery{DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, b.ID, found[0].ID)
}

// =============================================================================
// RENEWAL LEDGER
// =============================================================================

func TestMemory_RenewalLedger(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	v, err := s.LatestVersion(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	r1 := &pawn.Renewal{ContractID: c.ID, Date: day(2025, time.April, 1),
		DueDate: day(2025, time.May, 1), Version: 1, Amount: decimal.NewFromInt(80)}
	require.NoError(t, s.SaveRenewal(ctx, r1))
	require.NotZero(t, r1.ID)

	r2 := &pawn.Renewal{ContractID: c.ID, Date: day(2025, time.May, 1),
		DueDate: day(2025, time.June, 1), Version: 2, Amount: decimal.NewFromInt(60)}
	require.NoError(t, s.SaveRenewal(ctx, r2))

	latest, err := s.LatestRenewal(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, latest.Version)

	all, err := s.RenewalsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 1, all[0].Version)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTxMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that saves a renewal then fails
	// WHEN: WithTx returns the error
	// THEN: The renewal is not visible afterwards

	ctx := context.Background()
	s := store.NewTxMemory()
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx pawn.Store) error {
		r := &pawn.Renewal{ContractID: c.ID, Date: day(2025, time.April, 1),
			DueDate: day(2025, time.May, 1), Version: 1, Amount: decimal.NewFromInt(80)}
		if err := tx.SaveRenewal(ctx, r); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	renewals, err := s.RenewalsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, renewals)
}

func TestTxMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	err := s.WithTx(ctx, func(tx pawn.Store) error {
		products, err := tx.ProductsByContract(ctx, c.ID)
		if err != nil {
			return err
		}
		products[0].Amount = decimal.NewFromInt(40)
		return tx.UpdateProduct(ctx, products[0])
	})
	require.NoError(t, err)

	products, err := s.ProductsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, products[0].Amount.Equal(decimal.NewFromInt(40)))
}
