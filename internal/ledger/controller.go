package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"spendsmart/internal/core"
)

// API is the ledger server as seen by the view.
type API interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	AddTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, id int64, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListBudgets(ctx context.Context) (map[string]core.Money, error)
	SetBudget(ctx context.Context, category, limit string) error
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Event names a user action.
type Event string

const (
	EventSubmitTransaction Event = "submit-transaction"
	EventEditTransaction   Event = "edit-transaction"
	EventDeleteTransaction Event = "delete-transaction"
	EventSubmitBudget      Event = "submit-budget"
	EventLoad              Event = "load"
)

// Handler runs one action. The payload type depends on the event.
type Handler func(ctx context.Context, payload any) error

var ErrUnknownEvent = errors.New("unknown event")

// Controller drives the ledger view. It is not safe for concurrent use:
// every action runs to completion before the next is dispatched.
type Controller struct {
	api      API
	notifier Notifier
	chart    *ChartView
	state    *ViewState
	handlers map[Event]Handler

	form       TransactionForm
	budgetForm BudgetForm
	editing    int64
}

type Option func(*Controller)

// WithChart redraws the expense chart on every load.
func WithChart(v *ChartView) Option {
	return func(c *Controller) { c.chart = v }
}

// WithSymbol sets the currency symbol of the view state.
func WithSymbol(symbol string) Option {
	return func(c *Controller) { c.state = NewViewState(symbol) }
}

// NewController registers the default handler for every event.
func NewController(api API, notifier Notifier, opts ...Option) *Controller {
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	c := &Controller{
		api:      api,
		notifier: notifier,
		state:    NewViewState(""),
		handlers: make(map[Event]Handler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.On(EventLoad, func(ctx context.Context, _ any) error {
		return c.Load(ctx)
	})
	c.On(EventSubmitTransaction, func(ctx context.Context, payload any) error {
		form, ok := payload.(TransactionForm)
		if !ok {
			return payloadError(EventSubmitTransaction, payload)
		}
		return c.Submit(ctx, form)
	})
	c.On(EventEditTransaction, func(_ context.Context, payload any) error {
		id, ok := payload.(int64)
		if !ok {
			return payloadError(EventEditTransaction, payload)
		}
		return c.BeginEdit(id)
	})
	c.On(EventDeleteTransaction, func(ctx context.Context, payload any) error {
		id, ok := payload.(int64)
		if !ok {
			return payloadError(EventDeleteTransaction, payload)
		}
		return c.Delete(ctx, id)
	})
	c.On(EventSubmitBudget, func(ctx context.Context, payload any) error {
		form, ok := payload.(BudgetForm)
		if !ok {
			return payloadError(EventSubmitBudget, payload)
		}
		return c.SetBudget(ctx, form)
	})
	return c
}

func payloadError(e Event, payload any) error {
	return fmt.Errorf("%s: unexpected payload %T", e, payload)
}

// On registers h for e, replacing any previous handler.
func (c *Controller) On(e Event, h Handler) {
	c.handlers[e] = h
}

func (c *Controller) Dispatch(ctx context.Context, e Event, payload any) error {
	h, ok := c.handlers[e]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, e)
	}
	return h(ctx, payload)
}

func (c *Controller) State() *ViewState { return c.state }

// Form returns the current transaction form values.
func (c *Controller) Form() TransactionForm { return c.form }

func (c *Controller) BudgetForm() BudgetForm { return c.budgetForm }

// Editing returns the id the next submission updates, if any.
func (c *Controller) Editing() (int64, bool) {
	return c.editing, c.editing != 0
}

// Load fetches transactions and budgets concurrently. Each successful
// fetch replaces its cache; the first failure is returned.
func (c *Controller) Load(ctx context.Context) error {
	var (
		txs         []core.Transaction
		budgets     map[string]core.Money
		txErr, bErr error
		g           errgroup.Group
	)
	g.Go(func() error {
		txs, txErr = c.api.ListTransactions(ctx)
		return txErr
	})
	g.Go(func() error {
		budgets, bErr = c.api.ListBudgets(ctx)
		return bErr
	})
	err := g.Wait()

	if txErr == nil {
		if txs == nil {
			txs = []core.Transaction{}
		}
		c.state.Transactions = txs
	}
	if bErr == nil {
		if budgets == nil {
			budgets = map[string]core.Money{}
		}
		c.state.Budgets = budgets
	}
	if err != nil {
		c.notifier.Notify(MsgLoadFailed)
		return fmt.Errorf("load: %w", err)
	}
	return c.refreshChart()
}

func (c *Controller) loadBudgets(ctx context.Context) error {
	budgets, err := c.api.ListBudgets(ctx)
	if err != nil {
		c.notifier.Notify(MsgBudgetsStale)
		return fmt.Errorf("load budgets: %w", err)
	}
	if budgets == nil {
		budgets = map[string]core.Money{}
	}
	c.state.Budgets = budgets
	return nil
}

func (c *Controller) refreshChart() error {
	if c.chart == nil {
		return nil
	}
	return c.chart.Refresh(c.state.ExpenseDistribution())
}

// Submit validates the form and creates a transaction, or updates the one
// being edited. Validation failures are shown and no request is made.
func (c *Controller) Submit(ctx context.Context, form TransactionForm) error {
	c.form = form
	tx, err := form.Transaction()
	if err != nil {
		c.notifier.Notify(err.Error())
		return err
	}

	if id, ok := c.Editing(); ok {
		if err := c.api.UpdateTransaction(ctx, id, tx); err != nil {
			c.notifier.Notify(MsgUpdateFailed)
			return fmt.Errorf("update transaction %d: %w", id, err)
		}
		c.editing = 0
	} else {
		if _, err := c.api.AddTransaction(ctx, tx); err != nil {
			c.notifier.Notify(MsgAddFailed)
			return fmt.Errorf("add transaction: %w", err)
		}
	}
	c.form = TransactionForm{}
	return c.Load(ctx)
}

// BeginEdit fills the form from the loaded transaction with the given id
// and routes the next submission to an update.
func (c *Controller) BeginEdit(id int64) error {
	tx, ok := c.state.Find(id)
	if !ok {
		return fmt.Errorf("edit transaction %d: not loaded", id)
	}
	c.form = FormFor(tx)
	c.editing = id
	return nil
}

// CancelEdit restores create behaviour and clears the form.
func (c *Controller) CancelEdit() {
	c.editing = 0
	c.form = TransactionForm{}
}

func (c *Controller) Delete(ctx context.Context, id int64) error {
	if err := c.api.DeleteTransaction(ctx, id); err != nil {
		c.notifier.Notify(MsgDeleteFailed)
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if c.editing == id {
		c.CancelEdit()
	}
	return c.Load(ctx)
}

// SetBudget sends the form as entered and reloads the budgets.
func (c *Controller) SetBudget(ctx context.Context, form BudgetForm) error {
	c.budgetForm = form
	if err := c.api.SetBudget(ctx, form.Category, form.Limit); err != nil {
		c.notifier.Notify(MsgBudgetFailed)
		return fmt.Errorf("set budget: %w", err)
	}
	c.budgetForm = BudgetForm{}
	return c.loadBudgets(ctx)
}
