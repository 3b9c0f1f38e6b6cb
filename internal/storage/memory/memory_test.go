package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"spendsmart/internal/storage/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, New())
}

func TestNewFromFilesSeedsBudgets(t *testing.T) {
	dir := t.TempDir()
	// No file -> no budgets
	s := NewFromFiles(dir)
	budgets, _ := s.ListBudgets(context.Background(), 0)
	if len(budgets) != 0 {
		t.Fatalf("expected no budgets when file missing, got %v", budgets)
	}

	content := "# header\nFood=100\nRent = 1200,50\nbroken line\nBad=-3\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_budgets.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	budgets, _ = s.ListBudgets(context.Background(), 0)
	if len(budgets) != 2 {
		t.Fatalf("unexpected budgets: %v", budgets)
	}
	if budgets["Food"].Cents != 10000 || budgets["Rent"].Cents != 120050 {
		t.Fatalf("unexpected limits: %v", budgets)
	}
}
