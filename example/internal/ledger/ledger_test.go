package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
	"github.com/chosenoffset/nestprof/pkg/nestprof/middleware"
)

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestLedgerHandlers(t *testing.T) {
	l := NewLedger()

	testCases := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		target  string
		body    string
		want    int
	}{
		{"CreateAlice", l.HandleCreateAccount, http.MethodPost, "/account", `{"id":"alice","balance":100}`, http.StatusCreated},
		{"CreateBob", l.HandleCreateAccount, http.MethodPost, "/account", `{"id":"bob","balance":5}`, http.StatusCreated},
		{"Duplicate", l.HandleCreateAccount, http.MethodPost, "/account", `{"id":"bob","balance":1}`, http.StatusConflict},
		{"MissingID", l.HandleCreateAccount, http.MethodPost, "/account", `{"balance":1}`, http.StatusBadRequest},
		{"CreateWrongMethod", l.HandleCreateAccount, http.MethodGet, "/account", ``, http.StatusMethodNotAllowed},
		{"BalanceWrongMethod", l.HandleGetBalance, http.MethodPost, "/balance?id=bob", ``, http.StatusMethodNotAllowed},
		{"Transfer", l.HandleTransfer, http.MethodPost, "/transfer", `{"from":"alice","to":"bob","amount":40}`, http.StatusOK},
		{"Overdraft", l.HandleTransfer, http.MethodPost, "/transfer", `{"from":"bob","to":"alice","amount":1000}`, http.StatusBadRequest},
		{"UnknownAccount", l.HandleTransfer, http.MethodPost, "/transfer", `{"from":"alice","to":"carol","amount":1}`, http.StatusNotFound},
		{"NegativeAmount", l.HandleTransfer, http.MethodPost, "/transfer", `{"from":"alice","to":"bob","amount":-1}`, http.StatusBadRequest},
		{"BadJSON", l.HandleTransfer, http.MethodPost, "/transfer", `{`, http.StatusBadRequest},
		{"BalanceMissingID", l.HandleGetBalance, http.MethodGet, "/balance", ``, http.StatusBadRequest},
		{"BalanceUnknown", l.HandleGetBalance, http.MethodGet, "/balance?id=carol", ``, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(tc.handler, tc.method, tc.target, tc.body); rec.Code != tc.want {
				t.Errorf("Expected %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
			}
		})
	}

	var bob Account
	rec := do(l.HandleGetBalance, http.MethodGet, "/balance?id=bob", "")
	if err := json.NewDecoder(rec.Body).Decode(&bob); err != nil {
		t.Fatalf("Invalid balance response: %v", err)
	}
	if bob.ID != "bob" || bob.Balance != 45 {
		t.Errorf("Expected bob to hold 45, got %+v", bob)
	}
	if total := l.Total(); total != 105 {
		t.Errorf("Transfers must preserve the total, got %v", total)
	}
	if ids := strings.Join(l.AccountIDs(), ","); ids != "alice,bob" {
		t.Errorf("Unexpected accounts %s", ids)
	}
}

func TestLedgerRegions(t *testing.T) {
	l := NewLedger()
	agg := middleware.NewAggregator()
	m := middleware.New(middleware.Options{OnComplete: agg.Observe})

	create := m.Wrap(l.HandleCreateAccount)
	transfer := m.Wrap(l.HandleTransfer)

	do(create, http.MethodPost, "/account", `{"id":"a","balance":10}`)
	do(create, http.MethodPost, "/account", `{"id":"b","balance":10}`)
	do(transfer, http.MethodPost, "/transfer", `{"from":"a","to":"b","amount":3}`)

	snap := agg.Snapshot()
	for _, path := range []string{
		"POST /account/decode",
		"POST /account/apply",
		"POST /transfer/decode",
		"POST /transfer/validate",
		"POST /transfer/apply",
	} {
		if _, ok := snap.Find(path); !ok {
			t.Errorf("Expected region %s", path)
		}
	}

	account, _ := snap.Find("POST /account")
	if account.Calls != 2 {
		t.Errorf("Expected 2 account requests, got %d", account.Calls)
	}

	open := 0
	snap.Walk(func(r nestprof.Region) {
		if r.Active {
			open++
		}
	})
	if open != 0 {
		t.Errorf("Expected all regions closed, %d open", open)
	}
}
