// Package resource caches semantic resources and keeps them in sync with a
// triple store.
//
// Callers address resources by a kickoff string, which is either a URI or an
// opaque identifier. The Manager hands out reference-counted handles to shared
// records: every handle for the same kickoff, or for kickoffs that resolve to
// the same URI, sees the same properties. Resolution to a canonical URI
// happens lazily on first use. Local edits stay in memory until Sync, which
// merges them with the remote state and writes the result back.
//
// Records live in an arena owned by the Manager and are addressed by ID. When
// two records turn out to represent the same URI, the later one is redirected
// to the canonical record instead of being kept alive as a proxy.
package resource

import (
	"context"
	"log/slog"
	"sync"

	"resenje.org/singleflight"

	"github.com/c360studio/semres/ontology"
	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

// SyncObserver is notified after a resource was written to the store.
type SyncObserver interface {
	ResourceSynced(ctx context.Context, uri string, stmts []storage.Statement) error
}

// Manager owns every cached resource record.
//
// Lock order: a record's mu may be held while taking the manager's mu, never
// the other way around.
type Manager struct {
	store     storage.Store
	onto      *ontology.Model
	logger    *slog.Logger
	uriPrefix string
	graph     string
	observer  SyncObserver
	autoSync  bool

	mu        sync.Mutex
	nextID    ID
	records   map[ID]*Data
	byURI     map[string]ID
	byKickoff map[string]ID
	redirects map[ID]ID

	handlersMu sync.RWMutex
	handlers   []ErrorHandler

	loads singleflight.Group[string, []storage.Statement]

	loopMu   sync.Mutex
	stopLoop context.CancelFunc
	loopDone chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithOntology sets the class hierarchy used to check resource types. Without
// one every type is accepted.
func WithOntology(model *ontology.Model) Option {
	return func(m *Manager) {
		m.onto = model
	}
}

// WithURIPrefix sets the prefix of minted URIs.
func WithURIPrefix(prefix string) Option {
	return func(m *Manager) {
		m.uriPrefix = prefix
	}
}

// WithContext sets the named graph statements are written into.
func WithContext(graph string) Option {
	return func(m *Manager) {
		m.graph = graph
	}
}

// WithSyncObserver registers an observer for successful syncs.
func WithSyncObserver(o SyncObserver) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithAutoSync keeps released records with unsynced edits alive until the
// auto-sync loop has written them.
func WithAutoSync(enabled bool) Option {
	return func(m *Manager) {
		m.autoSync = enabled
	}
}

// NewManager creates a manager backed by store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		logger:    slog.Default(),
		uriPrefix: nao.ResourceNamespace,
		graph:     storage.MainContext,
		nextID:    1,
		records:   make(map[ID]*Data),
		byURI:     make(map[string]ID),
		byKickoff: make(map[string]ID),
		redirects: make(map[ID]ID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the backing store.
func (m *Manager) Store() storage.Store {
	return m.store
}

// Graph returns the named graph resources are written to.
func (m *Manager) Graph() string {
	return m.graph
}

// AutoSync reports whether released records with edits are kept for the
// auto-sync loop.
func (m *Manager) AutoSync() bool {
	return m.autoSync
}

// Resource returns a handle to the resource identified by kickoff, which may
// be a URI or an identifier. Handles for the same kickoff share one record.
// An empty typ means rdfs:Resource. No store access happens here.
func (m *Manager) Resource(kickoff, typ string) *Resource {
	if kickoff == "" {
		return m.NewResource(typ)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byURI[kickoff]
	if !ok {
		id, ok = m.byKickoff[kickoff]
	}
	if ok {
		d := m.records[m.canonicalLocked(id)]
		d.refs++
		cacheLookups.WithLabelValues("hit").Inc()
		return &Resource{m: m, id: d.id}
	}

	d := m.allocLocked(kickoff, typ)
	m.byKickoff[kickoff] = d.id
	d.kickoffs = append(d.kickoffs, kickoff)
	cacheLookups.WithLabelValues("miss").Inc()
	return &Resource{m: m, id: d.id}
}

// NewResource returns a handle to a new resource. Its URI is minted on first use.
func (m *Manager) NewResource(typ string) *Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.allocLocked("", typ)
	return &Resource{m: m, id: d.id}
}

func (m *Manager) allocLocked(kickoff, typ string) *Data {
	if typ == "" {
		typ = nao.RDFSResource
	}
	d := newData(m.nextID, kickoff, typ)
	d.refs = 1
	m.nextID++
	m.records[d.id] = d
	return d
}

// canonicalLocked follows redirects left behind by collapsed records.
func (m *Manager) canonicalLocked(id ID) ID {
	for {
		next, ok := m.redirects[id]
		if !ok {
			return id
		}
		id = next
	}
}

// lookup returns the live record for id.
func (m *Manager) lookup(id ID) (*Data, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.records[m.canonicalLocked(id)]
	return d, ok
}

// release drops one reference. Unreferenced records are evicted unless they
// carry edits the auto-sync loop still has to write.
func (m *Manager) release(id ID) {
	for {
		d, ok := m.lookup(id)
		if !ok {
			return
		}

		d.mu.Lock()
		dirty := d.dirtyLocked()
		uri := d.uri
		d.mu.Unlock()

		m.mu.Lock()
		if cur := m.records[m.canonicalLocked(id)]; cur != d {
			// d collapsed or was evicted meanwhile; its refs moved with it.
			m.mu.Unlock()
			if cur == nil {
				return
			}
			continue
		}
		d.refs--
		if d.refs > 0 || (dirty && m.autoSync) {
			m.mu.Unlock()
			return
		}
		m.evictLocked(d)
		m.mu.Unlock()

		if dirty {
			m.logger.Warn("Released resource with unsynced changes", "uri", uri, "kickoff", d.kickoff)
		}
		return
	}
}

// evictLocked removes d and every index entry pointing at it.
func (m *Manager) evictLocked(d *Data) {
	delete(m.records, d.id)
	for _, k := range d.kickoffs {
		if id, ok := m.byKickoff[k]; ok && m.canonicalLocked(id) == d.id {
			delete(m.byKickoff, k)
		}
	}
	if d.indexedURI != "" && m.byURI[d.indexedURI] == d.id {
		delete(m.byURI, d.indexedURI)
	}
	for _, from := range d.aliases {
		delete(m.redirects, from)
	}
	d.kickoffs, d.aliases = nil, nil
}

// OnError registers a handler for failed resolutions, loads and syncs.
func (m *Manager) OnError(h ErrorHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers = append(m.handlers, h)
}

func (m *Manager) notify(uri string, code ErrorCode) {
	m.handlersMu.RLock()
	handlers := append([]ErrorHandler(nil), m.handlers...)
	m.handlersMu.RUnlock()

	for _, h := range handlers {
		h(uri, code)
	}
}

// fail reports err to the error handlers and returns it as an *Error.
func (m *Manager) fail(uri string, code ErrorCode, err error) error {
	m.logger.Warn("Resource operation failed", "uri", uri, "code", code.String(), "error", err)
	m.notify(uri, code)
	return newError(uri, code, err)
}

// Stats describes the manager's cache.
type Stats struct {
	Records   int `json:"records"`
	URIs      int `json:"uris"`
	Kickoffs  int `json:"kickoffs"`
	Redirects int `json:"redirects"`
}

// Stats returns the current cache sizes.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Records:   len(m.records),
		URIs:      len(m.byURI),
		Kickoffs:  len(m.byKickoff),
		Redirects: len(m.redirects),
	}
}

// snapshot returns every live record.
func (m *Manager) snapshot() []*Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Data, 0, len(m.records))
	for _, d := range m.records {
		out = append(out, d)
	}
	return out
}

// Close stops the auto-sync loop, if running.
func (m *Manager) Close() error {
	m.StopAutoSync()
	return nil
}
