package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"spendsmart/internal/core"
	ports "spendsmart/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Sheet columns: ID, Date, Type, Category, Amount, Owner.
const (
	firstCol   = "A"
	lastCol    = "F"
	headerRows = 1
)

// valuesAPI is the slice of the Sheets values service the mirror needs.
type valuesAPI interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, values [][]any) error
	Clear(ctx context.Context, rng string) error
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string

	// id -> row number, refreshed from column A when stale
	mu                 sync.Mutex
	rows               map[int64]int
	nextRow            int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// Options configures the Sheets mirror. One of CredentialsJSON or
// CredentialsFile must be set.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return newClient(&serviceValues{svc: svc, spreadsheetID: spreadsheetID}, spreadsheetID, sheetName), nil
}

func newClient(values valuesAPI, spreadsheetID, sheetName string) *Client {
	return &Client{
		values:             values,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: 5 * time.Minute,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	var err error

	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		credentialsJSON, err = os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

func (c *Client) Upsert(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID <= 0 {
		return "", fmt.Errorf("mirror transaction: invalid id %d", tx.ID)
	}

	row, err := c.rowFor(ctx, tx.ID, true)
	if err != nil {
		return "", err
	}

	rng := c.rowRange(row)
	if err := c.values.Update(ctx, rng, [][]any{rowValues(tx)}); err != nil {
		c.invalidateRowCache()
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return rng, nil
}

func (c *Client) Clear(ctx context.Context, id int64) error {
	row, err := c.rowFor(ctx, id, false)
	if err != nil {
		return err
	}
	if row == 0 {
		return nil
	}

	rng := c.rowRange(row)
	if err := c.values.Clear(ctx, rng); err != nil {
		c.invalidateRowCache()
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}

	c.mu.Lock()
	delete(c.rows, id)
	c.mu.Unlock()
	return nil
}

// rowFor returns the sheet row of id. With allocate set, an unknown id is
// given the next free row; otherwise 0 is returned for it.
func (c *Client) rowFor(ctx context.Context, id int64, allocate bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rows == nil || !time.Now().Before(c.cacheExpiresAt) {
		if err := c.loadRowsLocked(ctx); err != nil {
			return 0, err
		}
	}

	if row, ok := c.rows[id]; ok {
		return row, nil
	}
	if !allocate {
		return 0, nil
	}
	row := c.nextRow
	c.rows[id] = row
	c.nextRow++
	return row, nil
}

func (c *Client) loadRowsLocked(ctx context.Context) error {
	rng := fmt.Sprintf("%s!%s:%s", c.sheetName, firstCol, firstCol)
	values, err := c.values.Get(ctx, rng)
	if err != nil {
		return fmt.Errorf("failed to get sheet dimensions for %s: %w", c.sheetName, err)
	}
	rows, next := indexRows(values)
	c.rows = rows
	c.nextRow = next
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return nil
}

func (c *Client) invalidateRowCache() {
	c.mu.Lock()
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", c.sheetName, firstCol, row, lastCol, row)
}

// indexRows maps the ids found in column A to their 1-based row numbers and
// returns the first row after the last used one. The header row is never
// reused.
func indexRows(values [][]any) (map[int64]int, int) {
	rows := make(map[int64]int, len(values))
	for i, row := range values {
		if i < headerRows || len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		rows[id] = i + 1
	}
	next := len(values) + 1
	if next <= headerRows {
		next = headerRows + 1
	}
	return rows, next
}

func rowValues(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		string(tx.Type),
		tx.Category,
		tx.Amount.String(),
		tx.OwnerID,
	}
}

// serviceValues adapts the generated Sheets client to valuesAPI.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) Update(ctx context.Context, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s *serviceValues) Clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	return err
}
