package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"spendsmart/internal/amqp"
	"spendsmart/internal/auth"
	"spendsmart/internal/cache"
	"spendsmart/internal/core"
	"spendsmart/internal/log"
	"spendsmart/internal/ports"
)

// ErrAuthDisabled is returned by the account operations when no signing
// secret is configured.
var ErrAuthDisabled = errors.New("authentication is not enabled")

// Publisher sends ledger events to the event pipeline.
type Publisher interface {
	Publish(ctx context.Context, e *amqp.LedgerEvent) error
}

// LedgerService orchestrates ledger operations across the store, the read
// caches and AMQP.
type LedgerService struct {
	store     ports.Store
	publisher Publisher
	tokens    *auth.Tokens
	logger    *log.StructuredLogger

	txCache     cache.Cache[[]core.Transaction]
	budgetCache cache.Cache[map[string]core.Money]
	txGen       generations
	budgetGen   generations
}

// generations counts invalidations per cache key. A read only fills the
// cache if no invalidation happened between its store read and the fill.
type generations struct {
	mu  sync.Mutex
	gen map[string]uint64
}

func (g *generations) current(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[key]
}

// fill runs set if key is still at generation seen.
func (g *generations) fill(key string, seen uint64, set func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen[key] == seen {
		set()
	}
}

func (g *generations) invalidate(key string, drop func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen == nil {
		g.gen = make(map[string]uint64)
	}
	g.gen[key]++
	drop()
}

type Option func(*LedgerService)

// WithPublisher enables event publishing. Without it mutations are not
// announced.
func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithTokens enables registration, login and session checks.
func WithTokens(t *auth.Tokens) Option {
	return func(s *LedgerService) { s.tokens = t }
}

func WithCaches(txs cache.Cache[[]core.Transaction], budgets cache.Cache[map[string]core.Money]) Option {
	return func(s *LedgerService) {
		s.txCache = txs
		s.budgetCache = budgets
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = log.NewStructuredLogger(l) }
}

func NewLedgerService(store ports.Store, opts ...Option) *LedgerService {
	s := &LedgerService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.txCache == nil {
		s.txCache = cache.NewLRUCache[[]core.Transaction](256, 5*time.Minute)
	}
	if s.budgetCache == nil {
		s.budgetCache = cache.NewLRUCache[map[string]core.Money](256, 5*time.Minute)
	}
	if s.logger == nil {
		s.logger = log.NewStructuredLogger(log.New(log.DefaultConfig()))
	}
	return s
}

func ownerKey(owner int64) string {
	return strconv.FormatInt(owner, 10)
}

// ListTransactions returns the owner's transactions in id order.
func (s *LedgerService) ListTransactions(ctx context.Context, owner int64) ([]core.Transaction, error) {
	key := ownerKey(owner)
	if txs, ok := s.txCache.Get(key); ok {
		return slices.Clone(txs), nil
	}

	seen := s.txGen.current(key)
	txs, err := s.store.ListTransactions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	s.txGen.fill(key, seen, func() { s.txCache.Set(key, txs) })
	return slices.Clone(txs), nil
}

// AddTransaction validates tx, stores it for owner and returns its id.
func (s *LedgerService) AddTransaction(ctx context.Context, owner int64, tx core.Transaction) (int64, error) {
	tx.OwnerID = owner
	tx = tx.Normalize()
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.AddTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}
	tx.ID = id
	s.invalidateTransactions(owner)

	s.logger.LogTransactionSaved(ctx, log.OpCreate, owner, id, string(tx.Type), tx.Amount.Cents, tx.Category)
	s.publish(ctx, amqp.NewTransactionEvent(amqp.TransactionCreated, tx))
	return id, nil
}

// UpdateTransaction replaces the record id of owner with tx.
func (s *LedgerService) UpdateTransaction(ctx context.Context, owner, id int64, tx core.Transaction) error {
	tx.ID = id
	tx.OwnerID = owner
	tx = tx.Normalize()
	if err := tx.Validate(); err != nil {
		return err
	}

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("update transaction %d: %w", id, err)
	}
	s.invalidateTransactions(owner)

	s.logger.LogTransactionSaved(ctx, log.OpUpdate, owner, id, string(tx.Type), tx.Amount.Cents, tx.Category)
	s.publish(ctx, amqp.NewTransactionEvent(amqp.TransactionUpdated, tx))
	return nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, owner, id int64) error {
	if err := s.store.DeleteTransaction(ctx, owner, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.invalidateTransactions(owner)

	s.publish(ctx, amqp.NewTransactionEvent(amqp.TransactionDeleted, core.Transaction{ID: id, OwnerID: owner}))
	return nil
}

// ListBudgets returns the owner's category limits.
func (s *LedgerService) ListBudgets(ctx context.Context, owner int64) (map[string]core.Money, error) {
	key := ownerKey(owner)
	if budgets, ok := s.budgetCache.Get(key); ok {
		return maps.Clone(budgets), nil
	}

	seen := s.budgetGen.current(key)
	budgets, err := s.store.ListBudgets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if budgets == nil {
		budgets = map[string]core.Money{}
	}
	s.budgetGen.fill(key, seen, func() { s.budgetCache.Set(key, budgets) })
	return maps.Clone(budgets), nil
}

// SetBudget inserts or replaces the limit of b.Category for owner.
func (s *LedgerService) SetBudget(ctx context.Context, owner int64, b core.Budget) error {
	b.OwnerID = owner
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return err
	}

	if err := s.store.SetBudget(ctx, b); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	s.invalidateBudgets(owner)

	slog.InfoContext(ctx, "Budget set",
		log.FieldOwner, owner,
		log.FieldCategory, b.Category,
		log.FieldLimitCents, b.Limit.Cents)
	s.publish(ctx, amqp.NewBudgetEvent(b))
	return nil
}

func (s *LedgerService) invalidateTransactions(owner int64) {
	key := ownerKey(owner)
	s.txGen.invalidate(key, func() { s.txCache.Delete(key) })
}

func (s *LedgerService) invalidateBudgets(owner int64) {
	key := ownerKey(owner)
	s.budgetGen.invalidate(key, func() { s.budgetCache.Delete(key) })
}

// publish never fails the caller: the mutation is already stored.
func (s *LedgerService) publish(ctx context.Context, e *amqp.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.LogError(ctx, "Failed to publish ledger event", err, log.ComponentAMQP, string(e.Kind),
			log.NewFields().WithOperation(string(e.Kind)))
	}
}

func (s *LedgerService) AuthEnabled() bool {
	return s.tokens != nil
}

// Register creates an account. The username is trimmed before storing.
func (s *LedgerService) Register(ctx context.Context, username, password string) (core.User, error) {
	if s.tokens == nil {
		return core.User{}, ErrAuthDisabled
	}
	username = strings.TrimSpace(username)
	if err := core.ValidateCredentials(username, password); err != nil {
		return core.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{Username: username, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	id, err := s.store.CreateUser(ctx, u)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id

	slog.InfoContext(ctx, "User registered", log.FieldUsername, username, log.FieldOwner, id)
	return u, nil
}

// Session is a signed token and the identity it stands for.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  auth.Identity
}

// Login checks the credentials and issues a session. Unknown usernames and
// wrong passwords both yield auth.ErrInvalidCredentials.
func (s *LedgerService) Login(ctx context.Context, username, password string) (Session, error) {
	if s.tokens == nil {
		return Session{}, ErrAuthDisabled
	}
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ports.ErrNotFound) {
		return Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("get user: %w", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return Session{}, err
	}

	id := auth.Identity{UserID: u.ID, Username: u.Username}
	token, expires, err := s.tokens.Issue(id)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, Identity: id}, nil
}

// Authenticate verifies a session token.
func (s *LedgerService) Authenticate(token string) (auth.Identity, error) {
	if s.tokens == nil {
		return auth.Identity{}, ErrAuthDisabled
	}
	return s.tokens.Parse(token)
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CacheStats reports the transaction and budget cache counters.
func (s *LedgerService) CacheStats() (txs, budgets cache.Stats) {
	return s.txCache.Stats(), s.budgetCache.Stats()
}

// Close closes the store and, when it supports it, the publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
