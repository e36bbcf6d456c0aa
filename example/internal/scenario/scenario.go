// Package scenario holds the traffic patterns the load generator replays
// against the ledger server.
package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
)

type Scenario interface {
	Name() string
	Run(ctx context.Context, client *http.Client, baseURL string) error
}

// All returns the built-in scenarios for a pool of n accounts.
func All(n int, rng *rand.Rand) []Scenario {
	return []Scenario{
		&Transfers{Accounts: n, Count: 5, rng: rng},
		&Balances{Accounts: n, Count: 5, rng: rng},
		&Overdraft{Accounts: n, rng: rng},
	}
}

// AccountID names the i-th account of the shared pool.
func AccountID(i int) string {
	return fmt.Sprintf("acct-%03d", i)
}

// Seed creates the account pool. Accounts that already exist are left as
// they are.
func Seed(ctx context.Context, client *http.Client, baseURL string, n int, balance float64) error {
	for i := 0; i < n; i++ {
		status, err := postJSON(ctx, client, baseURL+"/account", map[string]interface{}{
			"id":      AccountID(i),
			"balance": balance,
		})
		if err != nil {
			return err
		}
		if status != http.StatusCreated && status != http.StatusConflict {
			return fmt.Errorf("seeding %s: unexpected status %d", AccountID(i), status)
		}
	}
	return nil
}

// Transfers moves small random amounts between random accounts.
type Transfers struct {
	Accounts int
	Count    int
	rng      *rand.Rand
}

func (s *Transfers) Name() string { return "transfers" }

func (s *Transfers) Run(ctx context.Context, client *http.Client, baseURL string) error {
	for i := 0; i < s.Count; i++ {
		from, to := s.rng.Intn(s.Accounts), s.rng.Intn(s.Accounts)
		if from == to {
			continue
		}
		if _, err := postJSON(ctx, client, baseURL+"/transfer", map[string]interface{}{
			"from":   AccountID(from),
			"to":     AccountID(to),
			"amount": float64(1 + s.rng.Intn(20)),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Balances reads random balances.
type Balances struct {
	Accounts int
	Count    int
	rng      *rand.Rand
}

func (s *Balances) Name() string { return "balances" }

func (s *Balances) Run(ctx context.Context, client *http.Client, baseURL string) error {
	for i := 0; i < s.Count; i++ {
		url := fmt.Sprintf("%s/balance?id=%s", baseURL, AccountID(s.rng.Intn(s.Accounts)))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return nil
}

// Overdraft requests a transfer far above any balance, which the ledger
// must refuse.
type Overdraft struct {
	Accounts int
	rng      *rand.Rand
}

func (s *Overdraft) Name() string { return "overdraft" }

func (s *Overdraft) Run(ctx context.Context, client *http.Client, baseURL string) error {
	from := s.rng.Intn(s.Accounts)
	to := (from + 1) % s.Accounts
	status, err := postJSON(ctx, client, baseURL+"/transfer", map[string]interface{}{
		"from":   AccountID(from),
		"to":     AccountID(to),
		"amount": 1e12,
	})
	if err != nil {
		return err
	}
	if status != http.StatusBadRequest {
		return fmt.Errorf("overdraft was not refused: status %d", status)
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body interface{}) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
