package google

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"spendsmart/internal/core"
)

type fakeValues struct {
	column  [][]any
	updates map[string][]any
	cleared []string
	gets    int
	err     error
}

func (f *fakeValues) Get(_ context.Context, _ string) ([][]any, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	return f.column, nil
}

func (f *fakeValues) Update(_ context.Context, rng string, values [][]any) error {
	if f.err != nil {
		return f.err
	}
	if f.updates == nil {
		f.updates = map[string][]any{}
	}
	f.updates[rng] = values[0]
	return nil
}

func (f *fakeValues) Clear(_ context.Context, rng string) error {
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, rng)
	return nil
}

func sampleTx(id int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		OwnerID:  4,
		Amount:   core.Money{Cents: 1250},
		Type:     core.Expense,
		Category: "Food",
		Date:     core.NewDate(2024, 5, 17),
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIndexRows(t *testing.T) {
	tests := []struct {
		name     string
		values   [][]any
		wantRows map[int64]int
		wantNext int
	}{
		{
			name:     "empty sheet",
			values:   nil,
			wantRows: map[int64]int{},
			wantNext: 2,
		},
		{
			name:     "header only",
			values:   [][]any{{"ID"}},
			wantRows: map[int64]int{},
			wantNext: 2,
		},
		{
			name:     "ids with gaps and junk",
			values:   [][]any{{"ID"}, {"3"}, {}, {"abc"}, {int64(9)}, {" 12 "}},
			wantRows: map[int64]int{3: 2, 9: 5, 12: 6},
			wantNext: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, next := indexRows(tt.values)
			if next != tt.wantNext {
				t.Errorf("next = %d, want %d", next, tt.wantNext)
			}
			if len(rows) != len(tt.wantRows) {
				t.Fatalf("rows = %v, want %v", rows, tt.wantRows)
			}
			for id, row := range tt.wantRows {
				if rows[id] != row {
					t.Errorf("rows[%d] = %d, want %d", id, rows[id], row)
				}
			}
		})
	}
}

func TestClient_UpsertAppendsThenUpdatesInPlace(t *testing.T) {
	fake := &fakeValues{column: [][]any{{"ID"}, {"1"}}}
	c := newClient(fake, "sheet", "Transactions")
	ctx := context.Background()

	ref, err := c.Upsert(ctx, sampleTx(2))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if ref != "Transactions!A3:F3" {
		t.Errorf("ref = %q, want Transactions!A3:F3", ref)
	}
	row := fake.updates[ref]
	want := []any{int64(2), "2024-05-17", "expense", "Food", "12.50", int64(4)}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %v, want %v", i, row[i], want[i])
		}
	}

	ref, err = c.Upsert(ctx, sampleTx(1))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if ref != "Transactions!A2:F2" {
		t.Errorf("existing id should update its row, got %q", ref)
	}

	ref, _ = c.Upsert(ctx, sampleTx(2))
	if ref != "Transactions!A3:F3" {
		t.Errorf("second upsert of id 2 should reuse row 3, got %q", ref)
	}
	if fake.gets != 1 {
		t.Errorf("column should be read once while cached, got %d reads", fake.gets)
	}
}

func TestClient_Clear(t *testing.T) {
	fake := &fakeValues{column: [][]any{{"ID"}, {"1"}, {"2"}}}
	c := newClient(fake, "sheet", "Transactions")
	ctx := context.Background()

	if err := c.Clear(ctx, 2); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "Transactions!A3:F3" {
		t.Errorf("cleared = %v", fake.cleared)
	}

	if err := c.Clear(ctx, 99); err != nil {
		t.Fatalf("Clear() of unknown id error = %v", err)
	}
	if len(fake.cleared) != 1 {
		t.Errorf("unknown id must not clear anything, cleared = %v", fake.cleared)
	}
}

func TestClient_RowCacheExpiration(t *testing.T) {
	fake := &fakeValues{column: [][]any{{"ID"}}}
	c := newClient(fake, "sheet", "Transactions")
	c.cacheValidDuration = 50 * time.Millisecond
	ctx := context.Background()

	if _, err := c.Upsert(ctx, sampleTx(1)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if _, err := c.Upsert(ctx, sampleTx(1)); err != nil {
		t.Fatal(err)
	}
	if fake.gets != 2 {
		t.Errorf("expired cache should reload the id column, got %d reads", fake.gets)
	}
}

func TestClient_Errors(t *testing.T) {
	fake := &fakeValues{err: errors.New("quota exceeded")}
	c := newClient(fake, "sheet", "Transactions")

	if _, err := c.Upsert(context.Background(), sampleTx(1)); err == nil {
		t.Error("Upsert() should surface API errors")
	}
	if _, err := c.Upsert(context.Background(), core.Transaction{}); err == nil {
		t.Error("Upsert() should reject a transaction without id")
	}
	if err := c.Clear(context.Background(), 1); err == nil {
		t.Error("Clear() should surface API errors")
	}
}
