// Package store provides an in-memory pawn.TxStore for tests and demos.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goldline/pawn-engine/pawn"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	clients       map[string]pawn.Client
	contracts     map[string]pawn.Contract
	products      map[int64]pawn.Product
	renewals      map[string][]pawn.Renewal
	nextProductID int64
	nextRenewalID int64
}

func NewMemory() *Memory {
	return &Memory{
		clients:   make(map[string]pawn.Client),
		contracts: make(map[string]pawn.Contract),
		products:  make(map[int64]pawn.Product),
		renewals:  make(map[string][]pawn.Renewal),
	}
}

// =============================================================================
// CLIENT STORE
// =============================================================================

func (m *Memory) SaveClient(_ context.Context, c pawn.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveClientLocked(c)
}

func (m *Memory) saveClientLocked(c pawn.Client) error {
	if _, ok := m.clients[c.NationalID]; ok {
		return pawn.ErrDuplicateClient
	}
	m.clients[c.NationalID] = c
	return nil
}

func (m *Memory) FindClient(_ context.Context, nationalID string) (*pawn.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findClientLocked(nationalID)
}

func (m *Memory) findClientLocked(nationalID string) (*pawn.Client, error) {
	c, ok := m.clients[nationalID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]pawn.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]pawn.Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].Surname != clients[j].Surname {
			return clients[i].Surname < clients[j].Surname
		}
		return clients[i].Name < clients[j].Name
	})
	return clients, nil
}

func (m *Memory) UpdateClient(_ context.Context, c pawn.Client, oldNationalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateClientLocked(c, oldNationalID)
}

func (m *Memory) updateClientLocked(c pawn.Client, oldNationalID string) error {
	if _, ok := m.clients[oldNationalID]; !ok {
		return pawn.ErrClientNotFound
	}
	if c.NationalID != oldNationalID {
		if _, taken := m.clients[c.NationalID]; taken {
			return pawn.ErrDuplicateClient
		}
		delete(m.clients, oldNationalID)
	}
	m.clients[c.NationalID] = c
	return nil
}

func (m *Memory) DeleteClient(_ context.Context, nationalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[nationalID]; !ok {
		return pawn.ErrClientNotFound
	}
	delete(m.clients, nationalID)
	return nil
}

// =============================================================================
// CONTRACT STORE
// =============================================================================

func (m *Memory) SaveContract(_ context.Context, c *pawn.Contract, withPolicy bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveContractLocked(c, withPolicy)
}

func (m *Memory) saveContractLocked(c *pawn.Contract, withPolicy bool) error {
	year := c.StartDate.Year()

	seq := m.nextContractSequenceLocked(c.Type, year)
	c.ID = pawn.FormatContractID(c.Type, year, seq)
	if withPolicy {
		c.PolicyID = pawn.FormatPolicyID(year, m.nextPolicySequenceLocked(year))
	}

	stored := *c
	stored.Products = nil
	m.contracts[c.ID] = stored

	for i := range c.Products {
		c.Products[i].ContractID = c.ID
		m.nextProductID++
		c.Products[i].ID = m.nextProductID
		m.products[c.Products[i].ID] = c.Products[i]
	}
	return nil
}

func (m *Memory) FindContract(_ context.Context, id string) (*pawn.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findContractLocked(id)
}

func (m *Memory) findContractLocked(id string) (*pawn.Contract, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListContracts(_ context.Context) ([]pawn.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	contracts := make([]pawn.Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool {
		if !contracts[i].StartDate.Equal(contracts[j].StartDate) {
			return contracts[i].StartDate.After(contracts[j].StartDate)
		}
		return contracts[i].ID < contracts[j].ID
	})
	return contracts, nil
}

func (m *Memory) FindByClientAndType(_ context.Context, nationalID string, t pawn.ContractType) ([]pawn.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var contracts []pawn.Contract
	for _, c := range m.contracts {
		if c.ClientID == nationalID && c.Type == t {
			contracts = append(contracts, c)
		}
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
	return contracts, nil
}

func (m *Memory) SearchContracts(_ context.Context, q pawn.ContractQuery) ([]pawn.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var contracts []pawn.Contract
	for _, c := range m.contracts {
		if matchContract(c, q) {
			contracts = append(contracts, c)
		}
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
	return contracts, nil
}

func matchContract(c pawn.Contract, q pawn.ContractQuery) bool {
	if q.Text != "" && !strings.Contains(c.ID, q.Text) && !strings.Contains(c.ClientID, q.Text) {
		return false
	}
	if q.Type != nil && c.Type != *q.Type {
		return false
	}
	if q.DateFrom != nil && c.StartDate.Before(*q.DateFrom) {
		return false
	}
	if q.DateTo != nil && c.StartDate.After(*q.DateTo) {
		return false
	}
	return true
}

func (m *Memory) UpdateContract(_ context.Context, c pawn.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateContractLocked(c)
}

func (m *Memory) updateContractLocked(c pawn.Contract) error {
	if _, ok := m.contracts[c.ID]; !ok {
		return pawn.ErrContractNotFound
	}
	c.Products = nil
	m.contracts[c.ID] = c
	return nil
}

func (m *Memory) HasContractsForClient(_ context.Context, nationalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.contracts {
		if c.ClientID == nationalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpdateClientID(_ context.Context, oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateClientIDLocked(oldID, newID)
}

func (m *Memory) updateClientIDLocked(oldID, newID string) error {
	for id, c := range m.contracts {
		if c.ClientID == oldID {
			c.ClientID = newID
			m.contracts[id] = c
		}
	}
	return nil
}

func (m *Memory) NextContractSequence(_ context.Context, t pawn.ContractType, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextContractSequenceLocked(t, year), nil
}

func (m *Memory) nextContractSequenceLocked(t pawn.ContractType, year int) int {
	maxSeq := 0
	prefix := t.Prefix() + "-"
	for id := range m.contracts {
		if !strings.HasPrefix(id, prefix) || pawn.IdentYear(id) != year {
			continue
		}
		if seq := pawn.ParseIdentSequence(id); seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}

func (m *Memory) NextPolicySequence(_ context.Context, year int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextPolicySequenceLocked(year), nil
}

func (m *Memory) nextPolicySequenceLocked(year int) int {
	maxSeq := 0
	for _, c := range m.contracts {
		if c.PolicyID == "" || pawn.IdentYear(c.PolicyID) != year {
			continue
		}
		if seq := pawn.ParseIdentSequence(c.PolicyID); seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}

// =============================================================================
// PRODUCT STORE
// =============================================================================

func (m *Memory) SaveProduct(_ context.Context, p *pawn.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	p.ID = m.nextProductID
	m.products[p.ID] = *p
	return nil
}

func (m *Memory) FindProduct(_ context.Context, id int64) (*pawn.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ProductsByContract(_ context.Context, contractID string) ([]pawn.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.productsByContractLocked(contractID), nil
}

func (m *Memory) productsByContractLocked(contractID string) []pawn.Product {
	var products []pawn.Product
	for _, p := range m.products {
		if p.ContractID == contractID {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products
}

func (m *Memory) UpdateProduct(_ context.Context, p pawn.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateProductLocked(p)
}

func (m *Memory) updateProductLocked(p pawn.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return pawn.ErrProductNotFound
	}
	m.products[p.ID] = p
	return nil
}

// =============================================================================
// RENEWAL STORE - Append-only
// =============================================================================

func (m *Memory) SaveRenewal(_ context.Context, r *pawn.Renewal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRenewalLocked(r)
}

func (m *Memory) saveRenewalLocked(r *pawn.Renewal) error {
	m.nextRenewalID++
	r.ID = m.nextRenewalID
	m.renewals[r.ContractID] = append(m.renewals[r.ContractID], *r)
	return nil
}

func (m *Memory) RenewalsByContract(_ context.Context, contractID string) ([]pawn.Renewal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	renewals := make([]pawn.Renewal, len(m.renewals[contractID]))
	copy(renewals, m.renewals[contractID])
	sort.Slice(renewals, func(i, j int) bool { return renewals[i].Version < renewals[j].Version })
	return renewals, nil
}

func (m *Memory) LatestRenewal(_ context.Context, contractID string) (*pawn.Renewal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestRenewalLocked(contractID), nil
}

func (m *Memory) latestRenewalLocked(contractID string) *pawn.Renewal {
	var latest *pawn.Renewal
	for i, r := range m.renewals[contractID] {
		if latest == nil || r.Version > latest.Version {
			latest = &m.renewals[contractID][i]
		}
	}
	if latest == nil {
		return nil
	}
	r := *latest
	return &r
}

func (m *Memory) LatestVersion(_ context.Context, contractID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestVersionLocked(contractID), nil
}

func (m *Memory) latestVersionLocked(contractID string) int {
	version := 0
	for _, r := range m.renewals[contractID] {
		if r.Version > version {
			version = r.Version
		}
	}
	return version
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction, simulated with a snapshot and
// rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(pawn.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	clients       map[string]pawn.Client
	contracts     map[string]pawn.Contract
	products      map[int64]pawn.Product
	renewals      map[string][]pawn.Renewal
	nextProductID int64
	nextRenewalID int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		clients:       make(map[string]pawn.Client, len(tm.clients)),
		contracts:     make(map[string]pawn.Contract, len(tm.contracts)),
		products:      make(map[int64]pawn.Product, len(tm.products)),
		renewals:      make(map[string][]pawn.Renewal, len(tm.renewals)),
		nextProductID: tm.nextProductID,
		nextRenewalID: tm.nextRenewalID,
	}
	for k, v := range tm.clients {
		s.clients[k] = v
	}
	for k, v := range tm.contracts {
		s.contracts[k] = v
	}
	for k, v := range tm.products {
		s.products[k] = v
	}
	for k, v := range tm.renewals {
		s.renewals[k] = append([]pawn.Renewal{}, v...)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.clients = s.clients
	tm.contracts = s.contracts
	tm.products = s.products
	tm.renewals = s.renewals
	tm.nextProductID = s.nextProductID
	tm.nextRenewalID = s.nextRenewalID
}

// txMemoryView routes interface calls to the parent's locked internals while
// WithTx holds the write lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) SaveClient(_ context.Context, c pawn.Client) error {
	return tv.parent.saveClientLocked(c)
}

func (tv *txMemoryView) FindClient(_ context.Context, nationalID string) (*pawn.Client, error) {
	return tv.parent.findClientLocked(nationalID)
}

func (tv *txMemoryView) ListClients(ctx context.Context) ([]pawn.Client, error) {
	var clients []pawn.Client
	for _, c := range tv.parent.clients {
		clients = append(clients, c)
	}
	return clients, nil
}

func (tv *txMemoryView) UpdateClient(_ context.Context, c pawn.Client, oldNationalID string) error {
	return tv.parent.updateClientLocked(c, oldNationalID)
}

func (tv *txMemoryView) DeleteClient(_ context.Context, nationalID string) error {
	if _, ok := tv.parent.clients[nationalID]; !ok {
		return pawn.ErrClientNotFound
	}
	delete(tv.parent.clients, nationalID)
	return nil
}

func (tv *txMemoryView) SaveContract(_ context.Context, c *pawn.Contract, withPolicy bool) error {
	return tv.parent.saveContractLocked(c, withPolicy)
}

func (tv *txMemoryView) FindContract(_ context.Context, id string) (*pawn.Contract, error) {
	return tv.parent.findContractLocked(id)
}

func (tv *txMemoryView) ListContracts(_ context.Context) ([]pawn.Contract, error) {
	var contracts []pawn.Contract
	for _, c := range tv.parent.contracts {
		contracts = append(contracts, c)
	}
	return contracts, nil
}

func (tv *txMemoryView) FindByClientAndType(_ context.Context, nationalID string, t pawn.ContractType) ([]pawn.Contract, error) {
	var contracts []pawn.Contract
	for _, c := range tv.parent.contracts {
		if c.ClientID == nationalID && c.Type == t {
			contracts = append(contracts, c)
		}
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
	return contracts, nil
}

func (tv *txMemoryView) SearchContracts(_ context.Context, q pawn.ContractQuery) ([]pawn.Contract, error) {
	var contracts []pawn.Contract
	for _, c := range tv.parent.contracts {
		if matchContract(c, q) {
			contracts = append(contracts, c)
		}
	}
	sort.Slice(contracts, func(i, j int) bool { return contracts[i].ID < contracts[j].ID })
	return contracts, nil
}

func (tv *txMemoryView) UpdateContract(_ context.Context, c pawn.Contract) error {
	return tv.parent.updateContractLocked(c)
}

func (tv *txMemoryView) HasContractsForClient(_ context.Context, nationalID string) (bool, error) {
	for _, c := range tv.parent.contracts {
		if c.ClientID == nationalID {
			return true, nil
		}
	}
	return false, nil
}

func (tv *txMemoryView) UpdateClientID(_ context.Context, oldID, newID string) error {
	return tv.parent.updateClientIDLocked(oldID, newID)
}

func (tv *txMemoryView) NextContractSequence(_ context.Context, t pawn.ContractType, year int) (int, error) {
	return tv.parent.nextContractSequenceLocked(t, year), nil
}

func (tv *txMemoryView) NextPolicySequence(_ context.Context, year int) (int, error) {
	return tv.parent.nextPolicySequenceLocked(year), nil
}

func (tv *txMemoryView) SaveProduct(_ context.Context, p *pawn.Product) error {
	tv.parent.nextProductID++
	p.ID = tv.parent.nextProductID
	tv.parent.products[p.ID] = *p
	return nil
}

func (tv *txMemoryView) FindProduct(_ context.Context, id int64) (*pawn.Product, error) {
	p, ok := tv.parent.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (tv *txMemoryView) ProductsByContract(_ context.Context, contractID string) ([]pawn.Product, error) {
	return tv.parent.productsByContractLocked(contractID), nil
}

func (tv *txMemoryView) UpdateProduct(_ context.Context, p pawn.Product) error {
	return tv.parent.updateProductLocked(p)
}

func (tv *txMemoryView) SaveRenewal(_ context.Context, r *pawn.Renewal) error {
	return tv.parent.saveRenewalLocked(r)
}

func (tv *txMemoryView) RenewalsByContract(_ context.Context, contractID string) ([]pawn.Renewal, error) {
	return append([]pawn.Renewal{}, tv.parent.renewals[contractID]...), nil
}

func (tv *txMemoryView) LatestRenewal(_ context.Context, contractID string) (*pawn.Renewal, error) {
	return tv.parent.latestRenewalLocked(contractID), nil
}

func (tv *txMemoryView) LatestVersion(_ context.Context, contractID string) (int, error) {
	return tv.parent.latestVersionLocked(contractID), nil
}
