package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"spendsmart/internal/core"
	"spendsmart/internal/ports"
)

// Store keeps the ledger in process memory. It is the default backend and
// the reference implementation used by tests.
type Store struct {
	mu      sync.Mutex
	nextTx  int64
	nextUsr int64
	txs     map[int64]core.Transaction
	budgets map[int64]map[string]core.Money
	users   map[string]core.User
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		txs:     make(map[int64]core.Transaction),
		budgets: make(map[int64]map[string]core.Money),
		users:   make(map[string]core.User),
	}
}

// NewFromFiles returns a store whose owner-0 budgets are seeded from
// base/seed_budgets.txt. Each line has the form "Category=limit"; blank
// lines and lines starting with '#' are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_budgets.txt")) {
		cat, limit, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		cents, err := core.ParseDecimalToCents(limit)
		if err != nil {
			continue
		}
		b := core.Budget{Category: strings.TrimSpace(cat), Limit: core.Money{Cents: cents}}
		if b.Validate() != nil {
			continue
		}
		_ = s.SetBudget(context.Background(), b)
	}
	return s
}

func (s *Store) ListTransactions(_ context.Context, owner int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if tx.OwnerID == owner {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AddTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTx++
	tx.ID = s.nextTx
	s.txs[tx.ID] = tx
	return tx.ID, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.txs[tx.ID]
	if !ok || cur.OwnerID != tx.OwnerID {
		return ports.ErrNotFound
	}
	s.txs[tx.ID] = tx
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.txs[id]
	if !ok || cur.OwnerID != owner {
		return ports.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, owner, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok || tx.OwnerID != owner {
		return core.Transaction{}, ports.ErrNotFound
	}
	return tx, nil
}

func (s *Store) ListBudgets(_ context.Context, owner int64) (map[string]core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]core.Money, len(s.budgets[owner]))
	for k, v := range s.budgets[owner] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SetBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.budgets[b.OwnerID]
	if !ok {
		m = make(map[string]core.Money)
		s.budgets[b.OwnerID] = m
	}
	m[b.Category] = b.Limit
	return nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return 0, ports.ErrUsernameTaken
	}
	s.nextUsr++
	u.ID = s.nextUsr
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.Username] = u
	return u.ID, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return core.User{}, ports.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = make(map[int64]core.Transaction)
	s.budgets = make(map[int64]map[string]core.Money)
	s.users = make(map[string]core.User)
	s.nextTx, s.nextUsr = 0, 0
	return nil
}

func (s *Store) Close() error { return nil }

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
