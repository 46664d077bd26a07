// Package memdb is an in-memory implementation of the storage and
// repository interfaces. Transactions are serialized and run on a private
// copy of the data that replaces the committed state only on success.
package memdb

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/model"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/repository"
	"github.com/tuanvumaihuynh/pharmacy-inventory/internal/storage/db"
)

// ErrSQLNotSupported is returned by the raw SQL methods of db.DB.
var ErrSQLNotSupported = errors.New("memdb: raw SQL is not supported")

var (
	_ db.DB = (*Store)(nil)
	_ db.DB = (*Tx)(nil)
)

type outboxEntry struct {
	msg       repository.OutboxMsg
	processed bool
	attempts  int32
	err       *string
}

type state struct {
	nextID int64

	operators  map[int64]model.Operator
	customers  map[int64]model.Customer
	products   map[int64]model.Product
	sales      map[int64]model.Sale
	saleLines  map[int64]model.SaleLine
	orderLines map[int64]model.OrderLine
	outbox     []outboxEntry
}

func newState() *state {
	return &state{
		operators:  map[int64]model.Operator{},
		customers:  map[int64]model.Customer{},
		products:   map[int64]model.Product{},
		sales:      map[int64]model.Sale{},
		saleLines:  map[int64]model.SaleLine{},
		orderLines: map[int64]model.OrderLine{},
	}
}

func (s *state) clone() *state {
	return &state{
		nextID:     s.nextID,
		operators:  maps.Clone(s.operators),
		customers:  maps.Clone(s.customers),
		products:   maps.Clone(s.products),
		sales:      maps.Clone(s.sales),
		saleLines:  maps.Clone(s.saleLines),
		orderLines: maps.Clone(s.orderLines),
		outbox:     append([]outboxEntry(nil), s.outbox...),
	}
}

func (s *state) newID() int64 {
	s.nextID++
	return s.nextID
}

// reserveID keeps newID from handing out an id that was set explicitly.
func (s *state) reserveID(id int64) {
	s.nextID = max(s.nextID, id)
}

type fault struct {
	err       error
	remaining int
}

// Store is the committed state. It is safe for concurrent use.
type Store struct {
	// sem serializes transactions
	sem chan struct{}

	mu        sync.RWMutex
	committed *state

	faultMu sync.Mutex
	faults  map[string]*fault
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sem:       make(chan struct{}, 1),
		committed: newState(),
		faults:    map[string]*fault{},
	}
}

// WithTx runs txFunc on a private copy of the state. The copy becomes the
// committed state only when txFunc succeeds and ctx is still alive.
func (s *Store) WithTx(ctx context.Context, txFunc func(db.DB) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("begin transaction: %w", ctx.Err())
	}
	defer func() { <-s.sem }()

	s.mu.RLock()
	work := s.committed.clone()
	s.mu.RUnlock()

	if err := txFunc(&Tx{store: s, st: work}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.mu.Lock()
	s.committed = work
	s.mu.Unlock()

	return nil
}

// FailOn makes the named repository operation return err. A positive times
// limits the number of failures; otherwise it fails until ClearFaults.
func (s *Store) FailOn(op string, err error, times int) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[op] = &fault{err: err, remaining: times}
}

// ClearFaults removes every injected failure.
func (s *Store) ClearFaults() {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults = map[string]*fault{}
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()

	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.faults, op)
		}
	}
	return f.err
}

// AddOperator registers an operator under a fixed id that sales may
// reference.
func (s *Store) AddOperator(id int64) {
	//nolint:errcheck
	s.write(context.Background(), func(st *state) error {
		st.reserveID(id)
		st.operators[id] = model.Operator{ID: id, FullName: fmt.Sprintf("operator %d", id)}
		return nil
	})
}

// AddCustomer registers a customer under a fixed id that sales may
// reference.
func (s *Store) AddCustomer(id int64) {
	//nolint:errcheck
	s.write(context.Background(), func(st *state) error {
		st.reserveID(id)
		st.customers[id] = model.Customer{ID: id, FullName: fmt.Sprintf("customer %d", id)}
		return nil
	})
}

// read runs fn against the committed state.
func (s *Store) read(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

// write runs fn in its own transaction.
func (s *Store) write(ctx context.Context, fn func(*state) error) error {
	return s.WithTx(ctx, func(d db.DB) error {
		return fn(d.(*Tx).st)
	})
}

func (s *Store) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, ErrSQLNotSupported
}

func (s *Store) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, ErrSQLNotSupported
}

func (s *Store) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

func (s *Store) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	return errBatch{}
}

// Tx is the handle passed to WithTx callbacks. It must not be used after
// the callback returns.
type Tx struct {
	store *Store
	st    *state
}

func (t *Tx) WithTx(_ context.Context, txFunc func(db.DB) error) error {
	return txFunc(t)
}

func (t *Tx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, ErrSQLNotSupported
}

func (t *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, ErrSQLNotSupported
}

func (t *Tx) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	return errBatch{}
}

type errRow struct{}

func (errRow) Scan(...any) error { return ErrSQLNotSupported }

type errBatch struct{}

func (errBatch) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, ErrSQLNotSupported }
func (errBatch) Query() (pgx.Rows, error)         { return nil, ErrSQLNotSupported }
func (errBatch) QueryRow() pgx.Row                { return errRow{} }
func (errBatch) Close() error                     { return nil }

// handle gives repositories uniform access to either the committed state
// or a transaction's working copy.
type handle struct {
	store *Store
	tx    *Tx
}

func handleFor(store *Store, d db.DB) handle {
	switch v := d.(type) {
	case *Tx:
		return handle{store: v.store, tx: v}
	case *Store:
		return handle{store: v}
	default:
		panic(fmt.Sprintf("memdb: unsupported db.DB implementation %T", d))
	}
}

func (h handle) read(ctx context.Context, op string, fn func(*state) error) error {
	if err := h.store.fault(op); err != nil {
		return err
	}
	if h.tx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(h.tx.st)
	}
	return h.store.read(ctx, fn)
}

func (h handle) write(ctx context.Context, op string, fn func(*state) error) error {
	if err := h.store.fault(op); err != nil {
		return err
	}
	if h.tx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(h.tx.st)
	}
	return h.store.write(ctx, fn)
}
