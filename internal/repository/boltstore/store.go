// Package boltstore implements the repositories on an embedded bbolt file for
// single-process deployments such as the shop's desktop station.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/repository"
)

var (
	bucketCustomers   = []byte("customers")
	bucketDevices     = []byte("devices")
	bucketTickets     = []byte("tickets")
	bucketWorkLogs    = []byte("work_logs")
	bucketParts       = []byte("parts")
	bucketTicketParts = []byte("ticket_parts")
	bucketInvoices    = []byte("invoices")

	allBuckets = [][]byte{
		bucketCustomers,
		bucketDevices,
		bucketTickets,
		bucketWorkLogs,
		bucketParts,
		bucketTicketParts,
		bucketInvoices,
	}
)

// Store runs repository work inside bbolt read-write transactions. bbolt
// allows a single writer at a time, so every WithinTx call is serialized.
type Store struct {
	db *bolt.DB
}

// NewStore ensures the buckets exist and returns the store.
func NewStore(db *bolt.DB) (*Store, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(ctx, &txRepos{tx: &scope{tx: tx}})
	})
}

// Ping reports whether the database file is open.
func (s *Store) Ping(context.Context) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// scope is the write surface handed to repositories. Inside a savepoint it
// journals the previous value of every key it writes.
type scope struct {
	tx      *bolt.Tx
	journal *[]undo
}

type undo struct {
	bucket []byte
	key    []byte
	prev   []byte // nil when the key did not exist
}

func (s *scope) record(bucket, key []byte) {
	if s.journal == nil {
		return
	}
	*s.journal = append(*s.journal, undo{
		bucket: bucket,
		key:    bytes.Clone(key),
		prev:   bytes.Clone(s.tx.Bucket(bucket).Get(key)),
	})
}

func (s *scope) rollback() error {
	entries := *s.journal
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		var err error
		if e.prev == nil {
			err = s.tx.Bucket(e.bucket).Delete(e.key)
		} else {
			err = s.tx.Bucket(e.bucket).Put(e.key, e.prev)
		}
		if err != nil {
			return fmt.Errorf("restore %s/%s: %w", e.bucket, e.key, err)
		}
	}
	*s.journal = nil
	return nil
}

type txRepos struct {
	tx *scope
}

func (t *txRepos) Tickets() repository.TicketRepository         { return &ticketRepository{tx: t.tx} }
func (t *txRepos) Devices() repository.DeviceRepository         { return &deviceRepository{tx: t.tx} }
func (t *txRepos) Customers() repository.CustomerRepository     { return &customerRepository{tx: t.tx} }
func (t *txRepos) WorkLogs() repository.WorkLogRepository       { return &workLogRepository{tx: t.tx} }
func (t *txRepos) Parts() repository.PartRepository             { return &partRepository{tx: t.tx} }
func (t *txRepos) TicketParts() repository.TicketPartRepository { return &ticketPartRepository{tx: t.tx} }
func (t *txRepos) Invoices() repository.InvoiceRepository       { return &invoiceRepository{tx: t.tx} }

// Savepoint runs fn against a journaling scope of the enclosing transaction.
// bbolt has no nested transactions, so a failed fn is undone by restoring the
// journaled values; a successful one hands its journal to the parent scope.
func (t *txRepos) Savepoint(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	var journal []undo
	sp := &scope{tx: t.tx.tx, journal: &journal}
	if err := fn(ctx, &txRepos{tx: sp}); err != nil {
		if rerr := sp.rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("savepoint rollback: %w", rerr))
		}
		return err
	}
	if t.tx.journal != nil {
		*t.tx.journal = append(*t.tx.journal, journal...)
	}
	return nil
}

func get[T any](tx *scope, bucket []byte, entity, id string) (*T, error) {
	raw := tx.tx.Bucket(bucket).Get([]byte(id))
	if raw == nil {
		return nil, fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", entity, id, err)
	}
	return &v, nil
}

func put(tx *scope, bucket []byte, id string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tx.record(bucket, []byte(id))
	return tx.tx.Bucket(bucket).Put([]byte(id), payload)
}

func exists(tx *scope, bucket []byte, id string) bool {
	return tx.tx.Bucket(bucket).Get([]byte(id)) != nil
}

func remove(tx *scope, bucket []byte, entity, id string) error {
	if !exists(tx, bucket, id) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	tx.record(bucket, []byte(id))
	return tx.tx.Bucket(bucket).Delete([]byte(id))
}

func scan[T any](tx *scope, bucket []byte, keep func(*T) bool) ([]T, error) {
	var out []T
	err := tx.tx.Bucket(bucket).ForEach(func(_, raw []byte) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if keep(&v) {
			out = append(out, v)
		}
		return nil
	})
	return out, err
}
