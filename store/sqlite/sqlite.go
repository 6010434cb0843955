/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements pawn.TxStore using SQLite. The shop is a single-operator
  deployment, so a local database file is the production store.

KEY TABLES:
  clients:    Client registry keyed by national ID
  contracts:  Contracts with their assigned identifiers and lifecycle flags
  products:   Line items owned by contracts (never deleted)
  renewals:   Append-only renewal ledger (UNIQUE contract_id+version)

IDENTIFIER SEQUENCES:
  Next sequences are derived by parsing the numeric suffix of stored
  identifiers for the scope (type+year for contracts, year for policies).
  SaveContract runs the read-max and the insert inside one transaction, so
  the single-writer assumption only has to hold across processes, not
  within one.

MONEY AND DATES:
  Decimal amounts are stored as TEXT (exact round-trip, no float drift).
  Dates are stored as TEXT "YYYY-MM-DD" - the domain works at day
  granularity.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus WAL mode. The engine itself is
  single-user; the mutex just keeps the HTTP layer honest.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/shop.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For a multi-node deployment, use a
  proper migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - pawn/store.go: Interface definitions
  - pawn/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/goldline/pawn-engine/pawn"
)

const dateLayout = "2006-01-02"

// Store implements pawn.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		national_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		surname TEXT NOT NULL DEFAULT '',
		town TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		policy_id TEXT,
		client_id TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		final_date TEXT,
		type TEXT NOT NULL,
		redeemed INTEGER NOT NULL DEFAULT 0,
		redemption_date TEXT,
		amount TEXT NOT NULL DEFAULT '0'
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_client ON contracts(client_id);
	CREATE INDEX IF NOT EXISTS idx_contracts_type ON contracts(type);
	CREATE INDEX IF NOT EXISTS idx_contracts_start ON contracts(start_date);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		description TEXT NOT NULL,
		observations TEXT NOT NULL DEFAULT '',
		weight TEXT NOT NULL,
		price_per_gram TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_contract ON products(contract_id);

	CREATE TABLE IF NOT EXISTS renewals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id TEXT NOT NULL,
		renewal_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		version INTEGER NOT NULL,
		amount TEXT NOT NULL,
		UNIQUE(contract_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_renewals_contract ON renewals(contract_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, so every query helper can
// run either standalone or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// CLIENT STORE (pawn.ClientStore interface)
// =============================================================================

func (s *Store) SaveClient(ctx context.Context, c pawn.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveClient(ctx, s.db, c)
}

func (s *Store) saveClient(ctx context.Context, q dbtx, c pawn.Client) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO clients (national_id, name, surname, town, phone, address)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.NationalID, c.Name, c.Surname, c.Town, c.Phone, c.Address,
	)
	if isUniqueConstraintError(err) {
		return pawn.ErrDuplicateClient
	}
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

func (s *Store) FindClient(ctx context.Context, nationalID string) (*pawn.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findClient(ctx, s.db, nationalID)
}

func (s *Store) findClient(ctx context.Context, q dbtx, nationalID string) (*pawn.Client, error) {
	var c pawn.Client
	err := q.QueryRowContext(ctx,
		`SELECT national_id, name, surname, town, phone, address
		 FROM clients WHERE national_id = ?`, nationalID,
	).Scan(&c.NationalID, &c.Name, &c.Surname, &c.Town, &c.Phone, &c.Address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client: %w", err)
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]pawn.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listClients(ctx, s.db)
}

func (s *Store) listClients(ctx context.Context, q dbtx) ([]pawn.Client, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT national_id, name, surname, town, phone, address
		 FROM clients ORDER BY surname, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []pawn.Client
	for rows.Next() {
		var c pawn.Client
		if err := rows.Scan(&c.NationalID, &c.Name, &c.Surname, &c.Town, &c.Phone, &c.Address); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) UpdateClient(ctx context.Context, c pawn.Client, oldNationalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateClient(ctx, s.db, c, oldNationalID)
}

func (s *Store) updateClient(ctx context.Context, q dbtx, c pawn.Client, oldNationalID string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE clients SET national_id = ?, name = ?, surname = ?, town = ?, phone = ?, address = ?
		 WHERE national_id = ?`,
		c.NationalID, c.Name, c.Surname, c.Town, c.Phone, c.Address, oldNationalID,
	)
	if isUniqueConstraintError(err) {
		return pawn.ErrDuplicateClient
	}
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return requireRows(res, pawn.ErrClientNotFound)
}

func (s *Store) DeleteClient(ctx context.Context, nationalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteClient(ctx, s.db, nationalID)
}

func (s *Store) deleteClient(ctx context.Context, q dbtx, nationalID string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM clients WHERE national_id = ?", nationalID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return requireRows(res, pawn.ErrClientNotFound)
}

// =============================================================================
// CONTRACT STORE (pawn.ContractStore interface)
// =============================================================================

func (s *Store) SaveContract(ctx context.Context, c *pawn.Contract, withPolicy bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.saveContract(ctx, tx, c, withPolicy); err != nil {
		return err
	}
	return tx.Commit()
}

// saveContract assigns identifiers and persists the contract together with
// its products. The sequence read and the insert share q, so inside WithTx
// (or SaveContract's own transaction) they are atomic.
func (s *Store) saveContract(ctx context.Context, q dbtx, c *pawn.Contract, withPolicy bool) error {
	year := c.StartDate.Year()

	seq, err := s.nextContractSequence(ctx, q, c.Type, year)
	if err != nil {
		return err
	}
	c.ID = pawn.FormatContractID(c.Type, year, seq)

	if withPolicy {
		polSeq, err := s.nextPolicySequence(ctx, q, year)
		if err != nil {
			return err
		}
		c.PolicyID = pawn.FormatPolicyID(year, polSeq)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO contracts
		 (id, policy_id, client_id, details, start_date, final_date, type, redeemed, redemption_date, amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		nullString(c.PolicyID),
		c.ClientID,
		c.Details,
		c.StartDate.Format(dateLayout),
		nullDate(c.FinalDate),
		string(c.Type),
		c.Redeemed,
		nullDate(c.RedemptionDate),
		c.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save contract: %w", err)
	}

	for i := range c.Products {
		c.Products[i].ContractID = c.ID
		if err := s.saveProduct(ctx, q, &c.Products[i]); err != nil {
			return err
		}
	}
	return nil
}

const contractColumns = `id, policy_id, client_id, details, start_date, final_date, type, redeemed, redemption_date, amount`

func (s *Store) FindContract(ctx context.Context, id string) (*pawn.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findContract(ctx, s.db, id)
}

func (s *Store) findContract(ctx context.Context, q dbtx, id string) (*pawn.Contract, error) {
	contracts, err := s.queryContracts(ctx, q,
		`SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(contracts) == 0 {
		return nil, nil
	}
	return &contracts[0], nil
}

func (s *Store) ListContracts(ctx context.Context) ([]pawn.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryContracts(ctx, s.db,
		`SELECT `+contractColumns+` FROM contracts ORDER BY start_date DESC, id`)
}

func (s *Store) FindByClientAndType(ctx context.Context, nationalID string, t pawn.ContractType) ([]pawn.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByClientAndType(ctx, s.db, nationalID, t)
}

func (s *Store) findByClientAndType(ctx context.Context, q dbtx, nationalID string, t pawn.ContractType) ([]pawn.Contract, error) {
	return s.queryContracts(ctx, q,
		`SELECT `+contractColumns+` FROM contracts
		 WHERE TRIM(client_id) = ? AND type = ? ORDER BY id`,
		strings.TrimSpace(nationalID), string(t))
}

func (s *Store) SearchContracts(ctx context.Context, query pawn.ContractQuery) ([]pawn.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchContracts(ctx, s.db, query)
}

func (s *Store) searchContracts(ctx context.Context, q dbtx, query pawn.ContractQuery) ([]pawn.Contract, error) {
	sqlQuery := `SELECT ` + contractColumns + ` FROM contracts WHERE (id LIKE ? OR client_id LIKE ?)`
	args := []any{"%" + query.Text + "%", "%" + query.Text + "%"}

	if query.Type != nil {
		sqlQuery += " AND type = ?"
		args = append(args, string(*query.Type))
	}
	if query.DateFrom != nil {
		sqlQuery += " AND start_date >= ?"
		args = append(args, query.DateFrom.Format(dateLayout))
	}
	if query.DateTo != nil {
		sqlQuery += " AND start_date <= ?"
		args = append(args, query.DateTo.Format(dateLayout))
	}
	sqlQuery += " ORDER BY start_date DESC, id"

	return s.queryContracts(ctx, q, sqlQuery, args...)
}

func (s *Store) UpdateContract(ctx context.Context, c pawn.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateContract(ctx, s.db, c)
}

func (s *Store) updateContract(ctx context.Context, q dbtx, c pawn.Contract) error {
	res, err := q.ExecContext(ctx,
		`UPDATE contracts SET policy_id = ?, client_id = ?, details = ?, start_date = ?,
		 final_date = ?, type = ?, redeemed = ?, redemption_date = ?, amount = ?
		 WHERE id = ?`,
		nullString(c.PolicyID),
		c.ClientID,
		c.Details,
		c.StartDate.Format(dateLayout),
		nullDate(c.FinalDate),
		string(c.Type),
		c.Redeemed,
		nullDate(c.RedemptionDate),
		c.Amount.String(),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return requireRows(res, pawn.ErrContractNotFound)
}

func (s *Store) HasContractsForClient(ctx context.Context, nationalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasContractsForClient(ctx, s.db, nationalID)
}

func (s *Store) hasContractsForClient(ctx context.Context, q dbtx, nationalID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contracts WHERE client_id = ?", nationalID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count contracts: %w", err)
	}
	return count > 0, nil
}

func (s *Store) UpdateClientID(ctx context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateClientID(ctx, s.db, oldID, newID)
}

func (s *Store) updateClientID(ctx context.Context, q dbtx, oldID, newID string) error {
	_, err := q.ExecContext(ctx,
		"UPDATE contracts SET client_id = ? WHERE client_id = ?", newID, oldID)
	if err != nil {
		return fmt.Errorf("failed to re-point contracts: %w", err)
	}
	return nil
}

func (s *Store) NextContractSequence(ctx context.Context, t pawn.ContractType, year int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextContractSequence(ctx, s.db, t, year)
}

// nextContractSequence derives max(stored suffix)+1 for the type+year scope.
// Identifiers are {E|C}-yyyyNNNN, so the numeric suffix starts at char 7.
func (s *Store) nextContractSequence(ctx context.Context, q dbtx, t pawn.ContractType, year int) (int, error) {
	var max sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT MAX(CAST(SUBSTR(id, 7) AS INTEGER)) FROM contracts
		 WHERE type = ? AND SUBSTR(id, 3, 4) = ?`,
		string(t), fmt.Sprintf("%d", year),
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to derive contract sequence: %w", err)
	}
	return int(max.Int64) + 1, nil
}

func (s *Store) NextPolicySequence(ctx context.Context, year int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextPolicySequence(ctx, s.db, year)
}

func (s *Store) nextPolicySequence(ctx context.Context, q dbtx, year int) (int, error) {
	var max sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT MAX(CAST(SUBSTR(policy_id, 7) AS INTEGER)) FROM contracts
		 WHERE policy_id IS NOT NULL AND SUBSTR(policy_id, 3, 4) = ?`,
		fmt.Sprintf("%d", year),
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to derive policy sequence: %w", err)
	}
	return int(max.Int64) + 1, nil
}

func (s *Store) queryContracts(ctx context.Context, q dbtx, query string, args ...any) ([]pawn.Contract, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []pawn.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func scanContract(rows *sql.Rows) (pawn.Contract, error) {
	var (
		c              pawn.Contract
		policyID       sql.NullString
		startDate      string
		finalDate      sql.NullString
		contractType   string
		redemptionDate sql.NullString
		amount         string
	)

	err := rows.Scan(&c.ID, &policyID, &c.ClientID, &c.Details, &startDate,
		&finalDate, &contractType, &c.Redeemed, &redemptionDate, &amount)
	if err != nil {
		return c, fmt.Errorf("failed to scan contract: %w", err)
	}

	c.PolicyID = policyID.String
	c.Type = pawn.ContractType(contractType)
	c.StartDate, _ = time.Parse(dateLayout, startDate)
	c.FinalDate = parseNullDate(finalDate)
	c.RedemptionDate = parseNullDate(redemptionDate)
	c.Amount = parseDecimal(amount)
	return c, nil
}

// =============================================================================
// PRODUCT STORE (pawn.ProductStore interface)
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p *pawn.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveProduct(ctx, s.db, p)
}

func (s *Store) saveProduct(ctx context.Context, q dbtx, p *pawn.Product) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO products (contract_id, quantity, description, observations, weight, price_per_gram, amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ContractID, p.Quantity, p.Description, p.Observations,
		p.Weight.String(), p.PricePerGram.String(), p.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read product id: %w", err)
	}
	return nil
}

const productColumns = `id, contract_id, quantity, description, observations, weight, price_per_gram, amount`

func (s *Store) FindProduct(ctx context.Context, id int64) (*pawn.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findProduct(ctx, s.db, id)
}

func (s *Store) findProduct(ctx context.Context, q dbtx, id int64) (*pawn.Product, error) {
	products, err := s.queryProducts(ctx, q,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

func (s *Store) ProductsByContract(ctx context.Context, contractID string) ([]pawn.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productsByContract(ctx, s.db, contractID)
}

func (s *Store) productsByContract(ctx context.Context, q dbtx, contractID string) ([]pawn.Product, error) {
	return s.queryProducts(ctx, q,
		`SELECT `+productColumns+` FROM products WHERE contract_id = ? ORDER BY id`, contractID)
}

func (s *Store) UpdateProduct(ctx context.Context, p pawn.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateProduct(ctx, s.db, p)
}

func (s *Store) updateProduct(ctx context.Context, q dbtx, p pawn.Product) error {
	res, err := q.ExecContext(ctx,
		`UPDATE products SET contract_id = ?, quantity = ?, description = ?, observations = ?,
		 weight = ?, price_per_gram = ?, amount = ? WHERE id = ?`,
		p.ContractID, p.Quantity, p.Description, p.Observations,
		p.Weight.String(), p.PricePerGram.String(), p.Amount.String(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireRows(res, pawn.ErrProductNotFound)
}

func (s *Store) queryProducts(ctx context.Context, q dbtx, query string, args ...any) ([]pawn.Product, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []pawn.Product
	for rows.Next() {
		var (
			p                            pawn.Product
			weight, pricePerGram, amount string
		)
		if err := rows.Scan(&p.ID, &p.ContractID, &p.Quantity, &p.Description,
			&p.Observations, &weight, &pricePerGram, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Weight = parseDecimal(weight)
		p.PricePerGram = parseDecimal(pricePerGram)
		p.Amount = parseDecimal(amount)
		products = append(products, p)
	}
	return products, rows.Err()
}

// =============================================================================
// RENEWAL STORE (pawn.RenewalStore interface) - Append-only
// =============================================================================

func (s *Store) SaveRenewal(ctx context.Context, r *pawn.Renewal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRenewal(ctx, s.db, r)
}

func (s *Store) saveRenewal(ctx context.Context, q dbtx, r *pawn.Renewal) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO renewals (contract_id, renewal_date, due_date, version, amount)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ContractID,
		r.Date.Format(dateLayout),
		r.DueDate.Format(dateLayout),
		r.Version,
		r.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to append renewal: %w", err)
	}
	r.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read renewal id: %w", err)
	}
	return nil
}

const renewalColumns = `id, contract_id, renewal_date, due_date, version, amount`

func (s *Store) RenewalsByContract(ctx context.Context, contractID string) ([]pawn.Renewal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renewalsByContract(ctx, s.db, contractID)
}

func (s *Store) renewalsByContract(ctx context.Context, q dbtx, contractID string) ([]pawn.Renewal, error) {
	return s.queryRenewals(ctx, q,
		`SELECT `+renewalColumns+` FROM renewals WHERE contract_id = ? ORDER BY version`, contractID)
}

func (s *Store) LatestRenewal(ctx context.Context, contractID string) (*pawn.Renewal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestRenewal(ctx, s.db, contractID)
}

func (s *Store) latestRenewal(ctx context.Context, q dbtx, contractID string) (*pawn.Renewal, error) {
	renewals, err := s.queryRenewals(ctx, q,
		`SELECT `+renewalColumns+` FROM renewals WHERE contract_id = ?
		 ORDER BY version DESC LIMIT 1`, contractID)
	if err != nil {
		return nil, err
	}
	if len(renewals) == 0 {
		return nil, nil
	}
	return &renewals[0], nil
}

func (s *Store) LatestVersion(ctx context.Context, contractID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestVersion(ctx, s.db, contractID)
}

func (s *Store) latestVersion(ctx context.Context, q dbtx, contractID string) (int, error) {
	var max sql.NullInt64
	err := q.QueryRowContext(ctx,
		"SELECT MAX(version) FROM renewals WHERE contract_id = ?", contractID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	return int(max.Int64), nil
}

func (s *Store) queryRenewals(ctx context.Context, q dbtx, query string, args ...any) ([]pawn.Renewal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query renewals: %w", err)
	}
	defer rows.Close()

	var renewals []pawn.Renewal
	for rows.Next() {
		var (
			r                     pawn.Renewal
			date, dueDate, amount string
		)
		if err := rows.Scan(&r.ID, &r.ContractID, &date, &dueDate, &r.Version, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan renewal: %w", err)
		}
		r.Date, _ = time.Parse(dateLayout, date)
		r.DueDate, _ = time.Parse(dateLayout, dueDate)
		r.Amount = parseDecimal(amount)
		renewals = append(renewals, r)
	}
	return renewals, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (pawn.TxStore interface)
// =============================================================================

// WithTx executes a function within a single database transaction. The
// store passed to fn routes every call through the same *sql.Tx; fn
// returning an error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(store pawn.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transactional view handed to WithTx callbacks.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveClient(ctx context.Context, c pawn.Client) error {
	return ts.parent.saveClient(ctx, ts.tx, c)
}

func (ts *txStore) FindClient(ctx context.Context, nationalID string) (*pawn.Client, error) {
	return ts.parent.findClient(ctx, ts.tx, nationalID)
}

func (ts *txStore) ListClients(ctx context.Context) ([]pawn.Client, error) {
	return ts.parent.listClients(ctx, ts.tx)
}

func (ts *txStore) UpdateClient(ctx context.Context, c pawn.Client, oldNationalID string) error {
	return ts.parent.updateClient(ctx, ts.tx, c, oldNationalID)
}

func (ts *txStore) DeleteClient(ctx context.Context, nationalID string) error {
	return ts.parent.deleteClient(ctx, ts.tx, nationalID)
}

func (ts *txStore) SaveContract(ctx context.Context, c *pawn.Contract, withPolicy bool) error {
	return ts.parent.saveContract(ctx, ts.tx, c, withPolicy)
}

func (ts *txStore) FindContract(ctx context.Context, id string) (*pawn.Contract, error) {
	return ts.parent.findContract(ctx, ts.tx, id)
}

func (ts *txStore) ListContracts(ctx context.Context) ([]pawn.Contract, error) {
	return ts.parent.queryContracts(ctx, ts.tx,
		`SELECT `+contractColumns+` FROM contracts ORDER BY start_date DESC, id`)
}

func (ts *txStore) FindByClientAndType(ctx context.Context, nationalID string, t pawn.ContractType) ([]pawn.Contract, error) {
	return ts.parent.findByClientAndType(ctx, ts.tx, nationalID, t)
}

func (ts *txStore) SearchContracts(ctx context.Context, q pawn.ContractQuery) ([]pawn.Contract, error) {
	return ts.parent.searchContracts(ctx, ts.tx, q)
}

func (ts *txStore) UpdateContract(ctx context.Context, c pawn.Contract) error {
	return ts.parent.updateContract(ctx, ts.tx, c)
}

func (ts *txStore) HasContractsForClient(ctx context.Context, nationalID string) (bool, error) {
	return ts.parent.hasContractsForClient(ctx, ts.tx, nationalID)
}

func (ts *txStore) UpdateClientID(ctx context.Context, oldID, newID string) error {
	return ts.parent.updateClientID(ctx, ts.tx, oldID, newID)
}

func (ts *txStore) NextContractSequence(ctx context.Context, t pawn.ContractType, year int) (int, error) {
	return ts.parent.nextContractSequence(ctx, ts.tx, t, year)
}

func (ts *txStore) NextPolicySequence(ctx context.Context, year int) (int, error) {
	return ts.parent.nextPolicySequence(ctx, ts.tx, year)
}

func (ts *txStore) SaveProduct(ctx context.Context, p *pawn.Product) error {
	return ts.parent.saveProduct(ctx, ts.tx, p)
}

func (ts *txStore) FindProduct(ctx context.Context, id int64) (*pawn.Product, error) {
	return ts.parent.findProduct(ctx, ts.tx, id)
}

func (ts *txStore) ProductsByContract(ctx context.Context, contractID string) ([]pawn.Product, error) {
	return ts.parent.productsByContract(ctx, ts.tx, contractID)
}

func (ts *txStore) UpdateProduct(ctx context.Context, p pawn.Product) error {
	return ts.parent.updateProduct(ctx, ts.tx, p)
}

func (ts *txStore) SaveRenewal(ctx context.Context, r *pawn.Renewal) error {
	return ts.parent.saveRenewal(ctx, ts.tx, r)
}

func (ts *txStore) RenewalsByContract(ctx context.Context, contractID string) ([]pawn.Renewal, error) {
	return ts.parent.renewalsByContract(ctx, ts.tx, contractID)
}

func (ts *txStore) LatestRenewal(ctx context.Context, contractID string) (*pawn.Renewal, error) {
	return ts.parent.latestRenewal(ctx, ts.tx, contractID)
}

func (ts *txStore) LatestVersion(ctx context.Context, contractID string) (int, error) {
	return ts.parent.latestVersion(ctx, ts.tx, contractID)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func parseNullDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func requireRows(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
