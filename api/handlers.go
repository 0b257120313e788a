/*
handlers.go - HTTP API handlers for the reconciled logistics store

PURPOSE:
  Exposes the reconciled store via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and the store.

ENDPOINTS:
  Records:
    GET  /api/customers                List billing parties
    GET  /api/markings                 List cargo-label aliases
    GET  /api/shipments?limit=N        Latest shipments
    GET  /api/expenses/forever?limit=N Latest Forever expenses
    GET  /api/expenses/iphandlers?limit=N
    GET  /api/sales?limit=N            Latest sales

  Reconciliation:
    GET  /api/reconcile/unresolved     Per-table null-link tallies
    POST /api/import                   Ingest a batch, deterministic phase
                                       only; operator passes never run on
                                       the HTTP path

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/evaigen/auto-office/ingest"
	"github.com/evaigen/auto-office/reconcile"
	"github.com/evaigen/auto-office/store/sqlite"
)

const defaultListLimit = 100

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Runner *reconcile.Runner
	Logger *logrus.Logger
}

// NewHandler creates a new handler over the store. The runner it builds has
// no decision port: the HTTP surface only ever runs the deterministic phase.
func NewHandler(store *sqlite.Store, logger *logrus.Logger) *Handler {
	return &Handler{
		Store:  store,
		Runner: &reconcile.Runner{Store: store, Logger: logger},
		Logger: logger,
	}
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListCustomers returns all billing parties.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListMarkings returns all aliases, resolved or not.
func (h *Handler) ListMarkings(w http.ResponseWriter, r *http.Request) {
	markings, err := h.Store.ListMarkings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list markings", err)
		return
	}
	dtos := make([]MarkingDTO, len(markings))
	for i, m := range markings {
		dtos[i] = toMarkingDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListShipments returns the latest shipments.
func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	shipments, err := h.Store.ListShipments(r.Context(), listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list shipments", err)
		return
	}
	dtos := make([]ShipmentDTO, len(shipments))
	for i, s := range shipments {
		dtos[i] = toShipmentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListExpensesForever returns the latest Forever expenses.
func (h *Handler) ListExpensesForever(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.Store.ListExpensesForever(r.Context(), listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}
	dtos := make([]ExpenseForeverDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseForeverDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListExpensesIphandlers returns the latest IpHandlers expenses.
func (h *Handler) ListExpensesIphandlers(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.Store.ListExpensesIphandlers(r.Context(), listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}
	dtos := make([]ExpenseIphandlersDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseIphandlersDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListSales returns the latest sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.ListSales(r.Context(), listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// Unresolved returns the per-table tallies of records still missing links.
func (h *Handler) Unresolved(w http.ResponseWriter, r *http.Request) {
	gaps, err := h.Store.UnresolvedCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count unresolved links", err)
		return
	}
	writeJSON(w, http.StatusOK, gaps)
}

// Import ingests one batch and runs the deterministic phase. The rows follow
// the same column layout as the XLSX sheets of the kind.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	batch, err := ingest.BatchFromRows(reconcile.RecordKind(req.Kind), req.Rows, 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Batch rejected", err)
		return
	}

	summary, err := h.Runner.Run(r.Context(), batch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Import failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// =============================================================================
// HELPERS
// =============================================================================

func listLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

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
