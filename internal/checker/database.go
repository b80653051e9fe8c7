package checker

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/invoice-checker/internal/lottery"
)

const (
	winningSetsBucket = "winning_sets"
	historyBucket     = "winning_history"
	pendingBucket     = "pending_receipts"

	// knownSetsKey holds the whole known list so it is replaced in one write
	knownSetsKey = "known"
)

// DB defines the interface for database operations
type DB interface {
	// SaveWinningSets replaces the stored known-period list
	SaveWinningSets(sets []lottery.WinningNumberSet) error

	// LoadWinningSets returns the stored list, empty if none was saved
	LoadWinningSets() ([]lottery.WinningNumberSet, error)

	// SaveWinningRecord saves a confirmed win
	SaveWinningRecord(record *WinningRecord) error

	// ListWinningRecords returns all wins
	ListWinningRecords() ([]*WinningRecord, error)

	// ClearWinningRecords removes all wins
	ClearWinningRecords() error

	// SavePendingReceipt saves a pending receipt
	SavePendingReceipt(receipt *PendingReceipt) error

	// ListPendingReceipts returns all pending receipts
	ListPendingReceipts() ([]*PendingReceipt, error)

	// DeletePendingReceipt removes a pending receipt
	DeletePendingReceipt(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{winningSetsBucket, historyBucket, pendingBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveWinningSets replaces the stored known-period list
func (b *BoltDB) SaveWinningSets(sets []lottery.WinningNumberSet) error {
	data, err := json.Marshal(sets)
	if err != nil {
		return fmt.Errorf("marshaling winning sets: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(winningSetsBucket)).Put([]byte(knownSetsKey), data)
	})
}

// LoadWinningSets returns the stored list
func (b *BoltDB) LoadWinningSets() ([]lottery.WinningNumberSet, error) {
	sets := make([]lottery.WinningNumberSet, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(winningSetsBucket)).Get([]byte(knownSetsKey))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &sets)
	})
	if err != nil {
		return nil, fmt.Errorf("loading winning sets: %w", err)
	}
	return sets, nil
}

// SaveWinningRecord saves a confirmed win
func (b *BoltDB) SaveWinningRecord(record *WinningRecord) error {
	return put(b.db, historyBucket, record.ID, record)
}

// ListWinningRecords returns all wins
func (b *BoltDB) ListWinningRecords() ([]*WinningRecord, error) {
	return list[WinningRecord](b.db, historyBucket)
}

// ClearWinningRecords removes all wins
func (b *BoltDB) ClearWinningRecords() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(historyBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(historyBucket))
		return err
	})
}

// SavePendingReceipt saves a pending receipt
func (b *BoltDB) SavePendingReceipt(receipt *PendingReceipt) error {
	return put(b.db, pendingBucket, receipt.ID, receipt)
}

// ListPendingReceipts returns all pending receipts
func (b *BoltDB) ListPendingReceipts() ([]*PendingReceipt, error) {
	return list[PendingReceipt](b.db, pendingBucket)
}

// DeletePendingReceipt removes a pending receipt
func (b *BoltDB) DeletePendingReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(pendingBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("pending receipt not found: %s", id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func put(db *bbolt.DB, bucket, id string, v any) error {
	return db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", bucket, err)
		}
		return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
	})
}

func list[T any](db *bbolt.DB, bucket string) ([]*T, error) {
	items := make([]*T, 0)
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling %s: %w", bucket, err)
			}
			items = append(items, &item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
