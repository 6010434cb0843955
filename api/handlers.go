/*
handlers.go - HTTP API handlers for the contract lifecycle engine

PURPOSE:
  Exposes the shop's contract engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Clients:
    GET    /api/clients                    List all clients
    POST   /api/clients                    Register client
    GET    /api/clients/{id}               Get client
    PUT    /api/clients/{id}               Update client (id may change)
    DELETE /api/clients/{id}               Delete client (no contracts)
    GET    /api/clients/{id}/contracts     Client's contracts (?type=)

  Contracts:
    GET    /api/contracts                  List/search (?q=&type=&from=&to=)
    POST   /api/contracts                  Open contract
    GET    /api/contracts/{id}             Contract with products
    GET    /api/contracts/{id}/renewals    Renewal history
    POST   /api/contracts/{id}/renewals    Renew (pawn only)
    POST   /api/contracts/{id}/redemption  Redeem (pawn only, terminal)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (already redeemed, duplicate client, client has contracts)
  - 500: Internal errors

  A committed transition whose document failed to render still returns
  success; the response carries a document_error field instead.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - pawn/: The engines this layer fronts
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/goldline/pawn-engine/pawn"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      pawn.TxStore
	Service    *pawn.Service
	Renewals   *pawn.RenewalEngine
	Redemption *pawn.RedemptionEngine
}

// NewHandler wires the engines around one store and document generator.
func NewHandler(store pawn.TxStore, docs pawn.DocumentGenerator) *Handler {
	return &Handler{
		Store:      store,
		Service:    pawn.NewService(store, docs),
		Renewals:   pawn.NewRenewalEngine(store, docs),
		Redemption: pawn.NewRedemptionEngine(store, docs),
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = toClientDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClient returns a single client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.Service.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*client))
}

// CreateClient registers a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	client := pawn.Client{
		NationalID: req.NationalID,
		Name:       req.Name,
		Surname:    req.Surname,
		Town:       req.Town,
		Phone:      req.Phone,
		Address:    req.Address,
	}
	if err := h.Service.CreateClient(r.Context(), client); err != nil {
		writeDomainError(w, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(client))
}

// UpdateClient replaces a client record. The path id is the CURRENT national
// ID; the body may carry a new one, in which case contracts are re-pointed.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	oldID := chi.URLParam(r, "id")

	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	client := pawn.Client{
		NationalID: req.NationalID,
		Name:       req.Name,
		Surname:    req.Surname,
		Town:       req.Town,
		Phone:      req.Phone,
		Address:    req.Address,
	}
	if err := h.Service.UpdateClient(r.Context(), client, oldID); err != nil {
		writeDomainError(w, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(client))
}

// DeleteClient removes a client without contracts.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListClientContracts returns a client's contracts, optionally filtered by
// type (?type=pawn|purchase).
func (h *Handler) ListClientContracts(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	var contracts []pawn.Contract
	var err error
	if typeParam := r.URL.Query().Get("type"); typeParam != "" {
		t, terr := pawn.ParseContractType(typeParam)
		if terr != nil {
			writeError(w, http.StatusBadRequest, "Invalid type (use pawn or purchase)", terr)
			return
		}
		contracts, err = h.Store.FindByClientAndType(r.Context(), clientID, t)
	} else {
		pawns, perr := h.Store.FindByClientAndType(r.Context(), clientID, pawn.Pawn)
		if perr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list contracts", perr)
			return
		}
		purchases, perr := h.Store.FindByClientAndType(r.Context(), clientID, pawn.Purchase)
		if perr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list contracts", perr)
			return
		}
		contracts = append(pawns, purchases...)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts lists or searches contracts. With ?q= (or ?type=, ?from=,
// ?to=) it runs a filtered search; otherwise it returns everything.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var contracts []pawn.Contract
	var err error
	if params.Get("q") != "" || params.Get("type") != "" || params.Get("from") != "" || params.Get("to") != "" {
		query := pawn.ContractQuery{Text: params.Get("q")}
		if typeParam := params.Get("type"); typeParam != "" {
			t, terr := pawn.ParseContractType(typeParam)
			if terr != nil {
				writeError(w, http.StatusBadRequest, "Invalid type (use pawn or purchase)", terr)
				return
			}
			query.Type = &t
		}
		if query.DateFrom, err = parseDateParam(params.Get("from")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		if query.DateTo, err = parseDateParam(params.Get("to")); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		contracts, err = h.Store.SearchContracts(r.Context(), query)
	} else {
		contracts, err = h.Store.ListContracts(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contracts", err)
		return
	}

	dtos := make([]ContractDTO, len(contracts))
	for i, c := range contracts {
		dtos[i] = toContractDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetContract returns a contract with its products.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.Service.GetContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, toContractDTO(*contract))
}

// CreateContract opens a new contract with its line items.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	contractType, err := pawn.ParseContractType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid type (use pawn or purchase)", err)
		return
	}

	input := pawn.CreateContractInput{
		ClientID:   req.ClientID,
		Details:    req.Details,
		Type:       contractType,
		WithPolicy: req.WithPolicy,
	}

	if req.StartDate != "" {
		start, err := time.Parse(dateLayout, req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
			return
		}
		input.StartDate = start
	}
	if req.FinalDate != "" {
		final, err := time.Parse(dateLayout, req.FinalDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid final_date (use YYYY-MM-DD)", err)
			return
		}
		input.FinalDate = &final
	}

	for _, p := range req.Products {
		weight, err := parseDecimalField(p.Weight)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid product weight", err)
			return
		}
		price, err := parseDecimalField(p.PricePerGram)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid product price_per_gram", err)
			return
		}
		input.Products = append(input.Products, pawn.ProductInput{
			Quantity:     p.Quantity,
			Description:  p.Description,
			Observations: p.Observations,
			Weight:       weight,
			PricePerGram: price,
		})
	}

	contract, err := h.Service.CreateContract(r.Context(), input)

	var docErr *pawn.DocumentError
	if errors.As(err, &docErr) {
		dto := toContractDTO(*contract)
		writeJSON(w, http.StatusCreated, struct {
			ContractDTO
			Document string `json:"document_error"`
		}{dto, docErr.Error()})
		return
	}
	if err != nil {
		writeDomainError(w, "Failed to create contract", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractDTO(*contract))
}

// ListRenewals returns a contract's renewal history, oldest first.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	contractID := chi.URLParam(r, "id")

	contract, err := h.Store.FindContract(r.Context(), contractID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get contract", err)
		return
	}
	if contract == nil {
		writeError(w, http.StatusNotFound, "Contract not found", nil)
		return
	}

	renewals, err := h.Store.RenewalsByContract(r.Context(), contractID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list renewals", err)
		return
	}

	dtos := make([]RenewalDTO, len(renewals))
	for i, ren := range renewals {
		dtos[i] = toRenewalDTO(ren)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RenewContract applies one renewal cycle.
func (h *Handler) RenewContract(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	contribution, err := parseDecimalField(req.Contribution)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid contribution", err)
		return
	}

	result, err := h.Renewals.Renew(r.Context(), chi.URLParam(r, "id"), contribution)

	resp := RenewResponse{}
	var docErr *pawn.DocumentError
	if errors.As(err, &docErr) {
		resp.Document = docErr.Error()
		err = nil
	}
	if err != nil {
		writeDomainError(w, "Failed to renew contract", err)
		return
	}

	resp.Renewal = toRenewalDTO(result.Renewal)
	resp.Products = toProductDTOs(result.Products)
	writeJSON(w, http.StatusCreated, resp)
}

// RedeemContract performs the terminal redemption transition.
func (h *Handler) RedeemContract(w http.ResponseWriter, r *http.Request) {
	result, err := h.Redemption.Redeem(r.Context(), chi.URLParam(r, "id"))

	resp := RedeemResponse{}
	var docErr *pawn.DocumentError
	if errors.As(err, &docErr) {
		resp.Document = docErr.Error()
		err = nil
	}
	if err != nil {
		writeDomainError(w, "Failed to redeem contract", err)
		return
	}

	contract := result.Contract
	contract.Products = result.Products
	resp.Contract = toContractDTO(contract)
	resp.Fee = result.Fee.StringFixed(2)
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case pawn.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case pawn.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case pawn.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
