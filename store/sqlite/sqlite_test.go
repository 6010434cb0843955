package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/goldline/pawn-engine/pawn"
	"github.com/goldline/pawn-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedClient(t *testing.T, s *sqlite.Store) {
	t.Helper()
	require.NoError(t, s.SaveClient(context.Background(), pawn.Client{
		NationalID: "12345678Z",
		Name:       "Maria",
		Surname:    "Santos",
		Town:       "Sevilla",
	}))
}

func newContract(start time.Time, typ pawn.ContractType) *pawn.Contract {
	final := start.AddDate(0, 0, 30)
	c := &pawn.Contract{
		ClientID:  "12345678Z",
		Details:   "test goods",
		StartDate: start,
		Type:      typ,
		Amount:    decimal.RequireFromString("123.45"),
		Products: []pawn.Product{
			{Quantity: 1, Description: "chain", Weight: decimal.RequireFromString("4.115"),
				PricePerGram: decimal.NewFromInt(30), Amount: decimal.RequireFromString("123.45")},
		},
	}
	if typ == pawn.Pawn {
		c.FinalDate = &final
	}
	return c
}

// =============================================================================
// ROUND-TRIP AND IDENTIFIERS
// =============================================================================

func TestSQLite_SaveAndFindContract(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, true))
	require.Equal(t, "E-20250001", c.ID)
	require.Equal(t, "P-20250001", c.PolicyID)

	found, err := s.FindContract(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, c.ClientID, found.ClientID)
	require.Equal(t, pawn.Pawn, found.Type)
	require.True(t, found.StartDate.Equal(c.StartDate))
	require.NotNil(t, found.FinalDate)
	require.True(t, found.FinalDate.Equal(*c.FinalDate))
	require.False(t, found.Redeemed)
	// Decimal survives the TEXT round-trip exactly.
	require.True(t, found.Amount.Equal(decimal.RequireFromString("123.45")))
}

func TestSQLite_SequenceScopedByTypeAndYear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	for i := 0; i < 6; i++ {
		c := newContract(day(2025, time.March, 1+i), pawn.Pawn)
		require.NoError(t, s.SaveContract(ctx, c, false))
	}

	next := newContract(day(2025, time.April, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, next, false))
	require.Equal(t, "E-20250007", next.ID)

	purchase := newContract(day(2025, time.April, 1), pawn.Purchase)
	require.NoError(t, s.SaveContract(ctx, purchase, false))
	require.Equal(t, "C-20250001", purchase.ID)

	nextYear := newContract(day(2026, time.January, 2), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, nextYear, false))
	require.Equal(t, "E-20260001", nextYear.ID)
}

func TestSQLite_ProductsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	products, err := s.ProductsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotZero(t, products[0].ID)
	require.True(t, products[0].Weight.Equal(decimal.RequireFromString("4.115")))

	products[0].Amount = decimal.RequireFromString("23.45")
	require.NoError(t, s.UpdateProduct(ctx, products[0]))

	reloaded, err := s.FindProduct(ctx, products[0].ID)
	require.NoError(t, err)
	require.True(t, reloaded.Amount.Equal(decimal.RequireFromString("23.45")))
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestSQLite_ClientLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	require.ErrorIs(t,
		s.SaveClient(ctx, pawn.Client{NationalID: "12345678Z", Name: "Dup"}),
		pawn.ErrDuplicateClient)

	found, err := s.FindClient(ctx, "12345678Z")
	require.NoError(t, err)
	require.Equal(t, "Maria", found.Name)

	missing, err := s.FindClient(ctx, "00000000X")
	require.NoError(t, err)
	require.Nil(t, missing)

	updated := pawn.Client{NationalID: "87654321X", Name: "Maria", Surname: "Santos"}
	require.NoError(t, s.UpdateClient(ctx, updated, "12345678Z"))

	gone, err := s.FindClient(ctx, "12345678Z")
	require.NoError(t, err)
	require.Nil(t, gone)

	require.NoError(t, s.DeleteClient(ctx, "87654321X"))
	require.ErrorIs(t, s.DeleteClient(ctx, "87654321X"), pawn.ErrClientNotFound)
}

func TestSQLite_UpdateClientID_RepointsContracts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	require.NoError(t, s.UpdateClientID(ctx, "12345678Z", "87654321X"))

	found, err := s.FindContract(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "87654321X", found.ClientID)

	has, err := s.HasContractsForClient(ctx, "87654321X")
	require.NoError(t, err)
	require.True(t, has)
}

// =============================================================================
// SEARCH
// =============================================================================

func TestSQLite_SearchContracts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	a := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, a, false))
	b := newContract(day(2025, time.June, 1), pawn.Purchase)
	require.NoError(t, s.SaveContract(ctx, b, false))

	found, err := s.SearchContracts(ctx, pawn.ContractQuery{Text: "E-2025"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, a.ID, found[0].ID)

	purchaseType := pawn.Purchase
	from := day(2025, time.May, 1)
	found, err = s.SearchContracts(ctx, pawn.ContractQuery{Type: &purchaseType, DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, b.ID, found[0].ID)
}

// =============================================================================
// RENEWALS AND TRANSACTIONS
// =============================================================================

func TestSQLite_RenewalLedger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	v, err := s.LatestVersion(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 0, v)

	r := &pawn.Renewal{ContractID: c.ID, Date: day(2025, time.April, 1),
		DueDate: day(2025, time.May, 1), Version: 1, Amount: decimal.NewFromInt(80)}
	require.NoError(t, s.SaveRenewal(ctx, r))
	require.NotZero(t, r.ID)

	latest, err := s.LatestRenewal(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, latest.Version)
	require.True(t, latest.DueDate.Equal(day(2025, time.May, 1)))
}

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
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
		products, err := tx.ProductsByContract(ctx, c.ID)
		if err != nil {
			return err
		}
		products[0].Amount = decimal.Zero
		if err := tx.UpdateProduct(ctx, products[0]); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	renewals, err := s.RenewalsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, renewals)

	products, err := s.ProductsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, products[0].Amount.Equal(decimal.RequireFromString("123.45")))
}

func TestSQLite_WithTx_Commits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedClient(t, s)

	c := newContract(day(2025, time.March, 1), pawn.Pawn)
	require.NoError(t, s.SaveContract(ctx, c, false))

	err := s.WithTx(ctx, func(tx pawn.Store) error {
		r := &pawn.Renewal{ContractID: c.ID, Date: day(2025, time.April, 1),
			DueDate: day(2025, time.May, 1), Version: 1, Amount: decimal.NewFromInt(80)}
		return tx.SaveRenewal(ctx, r)
	})
	require.NoError(t, err)

	renewals, err := s.RenewalsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, renewals, 1)
}
