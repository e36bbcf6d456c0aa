// Package ledger provides a simple in-memory ledger for the nestprof example
// server. Its handlers mark their phases as profiler regions, so the report
// for a request shows where its time went:
//
//	POST /transfer
//	 decode
//	 validate
//	 apply
//
// The profiler comes from the request context, placed there by the nestprof
// HTTP middleware. Without the middleware the regions go to a throwaway
// profiler and the handlers behave the same.
package ledger

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
	"github.com/chosenoffset/nestprof/pkg/nestprof/middleware"
)

// Ledger manages account balances and provides thread-safe operations
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]float64
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[string]float64),
	}
}

// CreateAccountRequest is the input for /account
type CreateAccountRequest struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

// Account is what the ledger answers with on success.
type Account struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

// HandleCreateAccount opens an account with an initial balance. IDs are
// unique.
func (l *Ledger) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	prof := middleware.FromContext(r.Context())

	var req CreateAccountRequest
	if err := decode(prof, r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "account needs an id")
		return
	}

	defer prof.Region("apply")()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.accounts[req.ID]; taken {
		writeError(w, http.StatusConflict, "account "+req.ID+" exists")
		return
	}
	l.accounts[req.ID] = req.Balance
	writeJSON(w, http.StatusCreated, Account{ID: req.ID, Balance: req.Balance})
}

// HandleGetBalance reports the balance of ?id=.
func (l *Ledger) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id query parameter required")
		return
	}

	prof := middleware.FromContext(r.Context())
	prof.Start("lookup")
	l.mu.RLock()
	balance, found := l.accounts[id]
	l.mu.RUnlock()
	prof.Stop("lookup")

	if !found {
		writeError(w, http.StatusNotFound, "no account "+id)
		return
	}
	writeJSON(w, http.StatusOK, Account{ID: id, Balance: balance})
}

// TransferRequest is the input for /transfer
type TransferRequest struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// HandleTransfer moves a positive amount between two existing accounts.
func (l *Ledger) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	prof := middleware.FromContext(r.Context())

	var req TransferRequest
	if err := decode(prof, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed transfer")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	status, msg := l.check(prof, req)
	if status != http.StatusOK {
		writeError(w, status, msg)
		return
	}
	prof.Time("apply", func() {
		l.accounts[req.From] -= req.Amount
		l.accounts[req.To] += req.Amount
	})
	writeJSON(w, http.StatusOK, Account{ID: req.From, Balance: l.accounts[req.From]})
}

// check validates a transfer under the write lock.
func (l *Ledger) check(prof *nestprof.Profiler, req TransferRequest) (int, string) {
	defer prof.Region("validate")()

	from, fromFound := l.accounts[req.From]
	_, toFound := l.accounts[req.To]
	switch {
	case !fromFound || !toFound:
		return http.StatusNotFound, "unknown account"
	case from < req.Amount:
		return http.StatusBadRequest, "insufficient funds in " + req.From
	}
	return http.StatusOK, ""
}

func decode(prof *nestprof.Profiler, r *http.Request, v interface{}) error {
	defer prof.Region("decode")()
	return json.NewDecoder(r.Body).Decode(v)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, r.Method+" not allowed")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// AccountIDs returns the known account IDs in sorted order.
func (l *Ledger) AccountIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Total returns the sum of all balances. Transfers never change it.
func (l *Ledger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, b := range l.accounts {
		total += b
	}
	return total
}
