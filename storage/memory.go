package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
)

const (
	tableStatement = "statement"

	indexID              = "id"
	indexSubject         = "subject"
	indexPredicate       = "predicate"
	indexObject          = "object"
	indexPredicateObject = "predicateObject"
)

type statementRow struct {
	ID        string
	Subject   string
	Predicate string
	ObjectKey string
	Context   string
	Object    Node
}

func newStatementRow(st Statement) *statementRow {
	return &statementRow{
		ID:        st.Key(),
		Subject:   st.Subject,
		Predicate: st.Predicate,
		ObjectKey: st.Object.Key(),
		Context:   st.Context,
		Object:    st.Object,
	}
}

func (r *statementRow) statement() Statement {
	return Statement{
		Subject:   r.Subject,
		Predicate: r.Predicate,
		Object:    r.Object,
		Context:   r.Context,
	}
}

var memSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableStatement: {
			Name: tableStatement,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				indexSubject: {
					Name:    indexSubject,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Subject"},
				},
				indexPredicate: {
					Name:    indexPredicate,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Predicate"},
				},
				indexObject: {
					Name:    indexObject,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "ObjectKey"},
				},
				indexPredicateObject: {
					Name:   indexPredicateObject,
					Unique: false,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Predicate"},
							&memdb.StringFieldIndex{Field: "ObjectKey"},
						},
					},
				},
			},
		},
	},
}

// MemStore is an in-memory Store backed by go-memdb.
type MemStore struct {
	db     *memdb.MemDB
	closed atomic.Bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() (*MemStore, error) {
	db, err := memdb.NewMemDB(memSchema)
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	return &MemStore{db: db}, nil
}

// Match implements Store.
func (m *MemStore) Match(_ context.Context, p Pattern) ([]Statement, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := bestIterator(txn, p)
	if err != nil {
		return nil, fmt.Errorf("query statements: %w", err)
	}

	var out []Statement
	for raw := it.Next(); raw != nil; raw = it.Next() {
		st := raw.(*statementRow).statement()
		if !p.Matches(st) {
			continue
		}
		out = append(out, st)
		if p.limitReached(len(out)) {
			break
		}
	}
	return out, nil
}

// bestIterator picks the most selective index for the pattern.
func bestIterator(txn *memdb.Txn, p Pattern) (memdb.ResultIterator, error) {
	switch {
	case p.Subject != "":
		return txn.Get(tableStatement, indexSubject, p.Subject)
	case p.Predicate != "" && p.Object != nil:
		return txn.Get(tableStatement, indexPredicateObject, p.Predicate, p.Object.Key())
	case p.Object != nil:
		return txn.Get(tableStatement, indexObject, p.Object.Key())
	case p.Predicate != "":
		return txn.Get(tableStatement, indexPredicate, p.Predicate)
	default:
		return txn.Get(tableStatement, indexID)
	}
}

// Add implements Store.
func (m *MemStore) Add(_ context.Context, stmts ...Statement) error {
	if m.closed.Load() {
		return ErrClosed
	}
	for _, st := range stmts {
		if err := st.Validate(); err != nil {
			return err
		}
	}

	txn := m.db.Txn(true)
	defer txn.Abort()

	for _, st := range stmts {
		if err := txn.Insert(tableStatement, newStatementRow(st)); err != nil {
			return fmt.Errorf("insert statement: %w", err)
		}
	}
	txn.Commit()
	return nil
}

// RemoveMatching implements Store.
func (m *MemStore) RemoveMatching(_ context.Context, p Pattern) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}

	txn := m.db.Txn(true)
	defer txn.Abort()

	it, err := bestIterator(txn, p)
	if err != nil {
		return 0, fmt.Errorf("query statements: %w", err)
	}

	var doomed []*statementRow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		row := raw.(*statementRow)
		if p.Matches(row.statement()) {
			doomed = append(doomed, row)
		}
	}
	for _, row := range doomed {
		if err := txn.Delete(tableStatement, row); err != nil {
			return 0, fmt.Errorf("delete statement: %w", err)
		}
	}
	txn.Commit()
	return len(doomed), nil
}

// Len returns the number of stored statements.
func (m *MemStore) Len() int {
	txn := m.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableStatement, indexID)
	if err != nil {
		return 0
	}
	n := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n++
	}
	return n
}

// Close implements Store.
func (m *MemStore) Close() error {
	m.closed.Store(true)
	return nil
}
