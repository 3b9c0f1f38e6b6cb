// Package client is the HTTP client of the ledger server's JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendsmart/internal/core"
)

const defaultTimeout = 30 * time.Second

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends the session token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use, if any.
func (c *Client) Token() string { return c.token }

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var txs []core.Transaction
	if err := c.do(ctx, http.MethodGet, "/get_transactions", nil, &txs); err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

func (c *Client) AddTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/add_transaction", tx, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

func (c *Client) UpdateTransaction(ctx context.Context, id int64, tx core.Transaction) error {
	return c.do(ctx, http.MethodPut, "/update_transaction/"+strconv.FormatInt(id, 10), tx, nil)
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/delete_transaction/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) ListBudgets(ctx context.Context) (map[string]core.Money, error) {
	budgets := map[string]core.Money{}
	if err := c.do(ctx, http.MethodGet, "/get_budgets", nil, &budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// SetBudget sends the values as entered; the server validates them.
func (c *Client) SetBudget(ctx context.Context, category, limit string) error {
	body := map[string]string{"category": category, "limit": limit}
	return c.do(ctx, http.MethodPost, "/set_budget", body, nil)
}

// Login exchanges credentials for a session token and uses it for the
// following requests.
func (c *Client) Login(ctx context.Context, username, password string) (time.Time, error) {
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return time.Time{}, err
	}
	c.token = resp.Token
	return resp.ExpiresAt, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &payload) == nil {
		se.Message = payload.Error
	}
	return se
}
