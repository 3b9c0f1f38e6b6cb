package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

const (
	maxCategoryLen = 100
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 8
)

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single income or expense record. ID is assigned by
	// the store; OwnerID scopes the record to a user.
	Transaction struct {
		ID       int64           `json:"id"`
		OwnerID  int64           `json:"-"`
		Amount   Money           `json:"amount"`
		Type     TransactionType `json:"type"`
		Category string          `json:"category"`
		Date     Date            `json:"date"`
	}

	// Budget is the spending ceiling of one category.
	Budget struct {
		OwnerID  int64  `json:"-"`
		Category string `json:"category"`
		Limit    Money  `json:"limit"`
	}

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyCategory    = errors.New("empty category")
	ErrCategoryTooLong  = errors.New("category too long (max 100 characters)")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidLimit     = errors.New("invalid budget limit")
	ErrInvalidUsername  = errors.New("username must be 3-30 characters")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// ParseTransactionType accepts "income" or "expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC calendar date.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// OrToday returns d, or today's date when d is zero.
func (d Date) OrToday() Date {
	if d.IsZero() {
		return Today()
	}
	return d
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	switch {
	case m.Cents <= 0:
		return ErrInvalidAmount
	case m.Cents > MaxAmountCents:
		return ErrAmountTooLarge
	}
	return nil
}

func (tx Transaction) Validate() error {
	if err := tx.Type.Validate(); err != nil {
		return err
	}
	if err := tx.Amount.Validate(); err != nil {
		return err
	}
	if err := validateCategory(tx.Category); err != nil {
		return err
	}
	return tx.Date.Validate()
}

// Normalize trims the category and fills in today's date when none is set.
func (tx Transaction) Normalize() Transaction {
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Date = tx.Date.OrToday()
	return tx
}

func (b Budget) Validate() error {
	if err := validateCategory(b.Category); err != nil {
		return err
	}
	if b.Limit.Cents <= 0 || b.Limit.Cents > MaxAmountCents {
		return ErrInvalidLimit
	}
	return nil
}

func validateCategory(c string) error {
	c = strings.TrimSpace(c)
	if c == "" {
		return ErrEmptyCategory
	}
	if len(c) > maxCategoryLen {
		return ErrCategoryTooLong
	}
	return nil
}

// ValidateCredentials checks username and password lengths for registration.
func ValidateCredentials(username, password string) error {
	n := len(strings.TrimSpace(username))
	if n < minUsernameLen || n > maxUsernameLen {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}

// IsValidation reports whether err is one of the domain validation errors.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidType, ErrEmptyCategory, ErrCategoryTooLong,
		ErrInvalidDate, ErrInvalidLimit, ErrInvalidUsername, ErrPasswordTooShort,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
