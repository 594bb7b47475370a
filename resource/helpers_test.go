package resource_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360studio/semres/ontology"
	"github.com/c360studio/semres/resource"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

const (
	nfo       = "http://www.semanticdesktop.org/ontologies/2007/03/22/nfo#"
	document  = nfo + "Document"
	textDoc   = nfo + "TextDocument"
	fileClass = nfo + "FileDataObject"
)

var errUnavailable = errors.New("store unavailable")

// countingStore counts store calls and can be switched to fail them.
type countingStore struct {
	storage.Store
	calls atomic.Int64
	fail  atomic.Bool
}

func (s *countingStore) Match(ctx context.Context, p storage.Pattern) ([]storage.Statement, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return nil, errUnavailable
	}
	return s.Store.Match(ctx, p)
}

func (s *countingStore) Add(ctx context.Context, stmts ...storage.Statement) error {
	s.calls.Add(1)
	if s.fail.Load() {
		return errUnavailable
	}
	return s.Store.Add(ctx, stmts...)
}

func (s *countingStore) RemoveMatching(ctx context.Context, p storage.Pattern) (int, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return 0, errUnavailable
	}
	return s.Store.RemoveMatching(ctx, p)
}

func newStore(t *testing.T) *countingStore {
	t.Helper()
	mem, err := storage.NewMemStore()
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	return &countingStore{Store: mem}
}

func testOntology() *ontology.Model {
	m := ontology.Default()
	m.AddSubClass(document, nao.ClassInformationElement)
	m.AddSubClass(textDoc, document)
	m.AddSubClass(fileClass, nao.ClassDataObject)
	return m
}

func lit(s string) storage.Node {
	return storage.NewLiteral(s, nao.XSDString)
}

func put(t *testing.T, s storage.Store, subject, predicate string, object storage.Node) {
	t.Helper()
	require.NoError(t, s.Add(context.Background(), storage.Statement{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		Context:   storage.MainContext,
	}))
}

// errorRecorder collects error notifications.
type errorRecorder struct {
	mu     sync.Mutex
	events []recordedError
}

type recordedError struct {
	uri  string
	code resource.ErrorCode
}

func (r *errorRecorder) handle(uri string, code resource.ErrorCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedError{uri: uri, code: code})
}

func (r *errorRecorder) codes() []resource.ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]resource.ErrorCode, len(r.events))
	for i, e := range r.events {
		out[i] = e.code
	}
	return out
}

// recordingObserver collects synced resources.
type recordingObserver struct {
	mu     sync.Mutex
	synced map[string][]storage.Statement
}

func (o *recordingObserver) ResourceSynced(_ context.Context, uri string, stmts []storage.Statement) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.synced == nil {
		o.synced = make(map[string][]storage.Statement)
	}
	o.synced[uri] = stmts
	return nil
}
