// Package bolt implements ports.Store on a single bbolt file.
//
// Layout:
//
//	transactions/byID/<id>          JSON record
//	transactions/byOwner/<owner>/<id>  empty marker, keeps per-owner id order
//	budgets/<owner>/<category>      limit in cents
//	users/byName/<username>         JSON record
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"spendsmart/internal/core"
	"spendsmart/internal/ports"

	bolt "go.etcd.io/bbolt"
)

var (
	transactionsBucketName = []byte("transactions")
	byIDBucketName         = []byte("byID")
	byOwnerBucketName      = []byte("byOwner")
	budgetsBucketName      = []byte("budgets")
	usersBucketName        = []byte("users")
	byNameBucketName       = []byte("byName")
)

type txRecord struct {
	ID          uint64 `json:"id"`
	Owner       int64  `json:"owner"`
	AmountCents int64  `json:"amount_cents"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type userRecord struct {
	ID           uint64 `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

type BoltDBRepository struct {
	db *bolt.DB
}

var _ ports.Store = (*BoltDBRepository)(nil)

// Open opens (or creates) the database file at path.
func Open(path string) (*BoltDBRepository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	repo, err := NewBoltDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func NewBoltDB(db *bolt.DB) (*BoltDBRepository, error) {
	if err := db.Update(createBuckets); err != nil {
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltDBRepository{db: db}, nil
}

func createBuckets(tx *bolt.Tx) error {
	tBucket, err := tx.CreateBucketIfNotExists(transactionsBucketName)
	if err != nil {
		return err
	}
	if _, err := tBucket.CreateBucketIfNotExists(byIDBucketName); err != nil {
		return err
	}
	if _, err := tBucket.CreateBucketIfNotExists(byOwnerBucketName); err != nil {
		return err
	}
	if _, err := tx.CreateBucketIfNotExists(budgetsBucketName); err != nil {
		return err
	}
	uBucket, err := tx.CreateBucketIfNotExists(usersBucketName)
	if err != nil {
		return err
	}
	_, err = uBucket.CreateBucketIfNotExists(byNameBucketName)
	return err
}

func (r *BoltDBRepository) ListTransactions(_ context.Context, owner int64) ([]core.Transaction, error) {
	out := []core.Transaction{}
	err := r.db.View(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		ownerBucket := tBucket.Bucket(byOwnerBucketName).Bucket(otob(owner))
		if ownerBucket == nil {
			return nil
		}
		byID := tBucket.Bucket(byIDBucketName)
		return ownerBucket.ForEach(func(k, _ []byte) error {
			raw := byID.Get(k)
			if raw == nil {
				return nil
			}
			t, err := decodeTransaction(raw)
			if err != nil {
				return err
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BoltDBRepository) GetTransaction(_ context.Context, owner, id int64) (core.Transaction, error) {
	var t core.Transaction
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(transactionsBucketName).Bucket(byIDBucketName).Get(itob(uint64(id)))
		if raw == nil {
			return ports.ErrNotFound
		}
		var err error
		t, err = decodeTransaction(raw)
		if err != nil {
			return err
		}
		if t.OwnerID != owner {
			return ports.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (r *BoltDBRepository) AddTransaction(_ context.Context, t core.Transaction) (int64, error) {
	var id uint64
	err := r.db.Update(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		byID := tBucket.Bucket(byIDBucketName)

		var err error
		id, err = byID.NextSequence()
		if err != nil {
			return err
		}
		t.ID = int64(id)
		raw, err := encodeTransaction(t)
		if err != nil {
			return err
		}
		if err := byID.Put(itob(id), raw); err != nil {
			return err
		}
		ownerBucket, err := tBucket.Bucket(byOwnerBucketName).CreateBucketIfNotExists(otob(t.OwnerID))
		if err != nil {
			return err
		}
		return ownerBucket.Put(itob(id), []byte{})
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return int64(id), nil
}

func (r *BoltDBRepository) UpdateTransaction(_ context.Context, t core.Transaction) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		byID := tx.Bucket(transactionsBucketName).Bucket(byIDBucketName)
		key := itob(uint64(t.ID))
		raw := byID.Get(key)
		if raw == nil {
			return ports.ErrNotFound
		}
		cur, err := decodeTransaction(raw)
		if err != nil {
			return err
		}
		if cur.OwnerID != t.OwnerID {
			return ports.ErrNotFound
		}
		next, err := encodeTransaction(t)
		if err != nil {
			return err
		}
		return byID.Put(key, next)
	})
}

func (r *BoltDBRepository) DeleteTransaction(_ context.Context, owner, id int64) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		tBucket := tx.Bucket(transactionsBucketName)
		byID := tBucket.Bucket(byIDBucketName)
		key := itob(uint64(id))
		raw := byID.Get(key)
		if raw == nil {
			return ports.ErrNotFound
		}
		cur, err := decodeTransaction(raw)
		if err != nil {
			return err
		}
		if cur.OwnerID != owner {
			return ports.ErrNotFound
		}
		if err := byID.Delete(key); err != nil {
			return err
		}
		if ownerBucket := tBucket.Bucket(byOwnerBucketName).Bucket(otob(owner)); ownerBucket != nil {
			return ownerBucket.Delete(key)
		}
		return nil
	})
}

func (r *BoltDBRepository) ListBudgets(_ context.Context, owner int64) (map[string]core.Money, error) {
	out := make(map[string]core.Money)
	err := r.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(budgetsBucketName).Bucket(otob(owner))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			out[string(k)] = core.Money{Cents: int64(binary.BigEndian.Uint64(v))}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BoltDBRepository) SetBudget(_ context.Context, b core.Budget) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket(budgetsBucketName).CreateBucketIfNotExists(otob(b.OwnerID))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(b.Category), itob(uint64(b.Limit.Cents)))
	})
}

func (r *BoltDBRepository) CreateUser(_ context.Context, u core.User) (int64, error) {
	var id uint64
	err := r.db.Update(func(tx *bolt.Tx) error {
		uBucket := tx.Bucket(usersBucketName)
		byName := uBucket.Bucket(byNameBucketName)
		if byName.Get([]byte(u.Username)) != nil {
			return ports.ErrUsernameTaken
		}
		var err error
		id, err = uBucket.NextSequence()
		if err != nil {
			return err
		}
		created := u.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		raw, err := json.Marshal(userRecord{
			ID:           id,
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			CreatedAt:    created.Unix(),
		})
		if err != nil {
			return err
		}
		return byName.Put([]byte(u.Username), raw)
	})
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}

func (r *BoltDBRepository) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	var u core.User
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(usersBucketName).Bucket(byNameBucketName).Get([]byte(username))
		if raw == nil {
			return ports.ErrNotFound
		}
		var err error
		u, err = decodeUser(raw)
		return err
	})
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (r *BoltDBRepository) ListUsers(_ context.Context) ([]core.User, error) {
	var out []core.User
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(usersBucketName).Bucket(byNameBucketName).ForEach(func(_, v []byte) error {
			u, err := decodeUser(v)
			if err != nil {
				return err
			}
			out = append(out, u)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// byName is keyed by username; order by id to match the other stores.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *BoltDBRepository) Ping(context.Context) error {
	return r.db.View(func(*bolt.Tx) error { return nil })
}

func (r *BoltDBRepository) Reset(context.Context) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{transactionsBucketName, budgetsBucketName, usersBucketName} {
			if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
				return err
			}
		}
		return createBuckets(tx)
	})
}

func (r *BoltDBRepository) Close() error {
	return r.db.Close()
}

func encodeTransaction(t core.Transaction) ([]byte, error) {
	return json.Marshal(txRecord{
		ID:          uint64(t.ID),
		Owner:       t.OwnerID,
		AmountCents: t.Amount.Cents,
		Type:        string(t.Type),
		Category:    t.Category,
		Date:        t.Date.String(),
	})
}

func decodeTransaction(raw []byte) (core.Transaction, error) {
	var rec txRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(rec.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:       int64(rec.ID),
		OwnerID:  rec.Owner,
		Amount:   core.Money{Cents: rec.AmountCents},
		Type:     core.TransactionType(rec.Type),
		Category: rec.Category,
		Date:     d,
	}, nil
}

func decodeUser(raw []byte) (core.User, error) {
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return core.User{}, err
	}
	return core.User{
		ID:           int64(rec.ID),
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    time.Unix(rec.CreatedAt, 0).UTC(),
	}, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// otob encodes an owner id; owners are never negative.
func otob(owner int64) []byte {
	return itob(uint64(owner))
}
