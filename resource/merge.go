package resource

import (
	"context"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

// fetch loads the remote statements of uri. Concurrent fetches of the same
// URI share one store round trip.
func (m *Manager) fetch(ctx context.Context, uri string) ([]storage.Statement, error) {
	stmts, shared, err := m.loads.Do(ctx, uri, func(ctx context.Context) ([]storage.Statement, error) {
		return storage.Load(ctx, m.store, uri)
	})
	if err != nil {
		return nil, err
	}
	observeLoad(shared)
	return stmts, nil
}

// remoteState is the resource as the store currently has it.
type remoteState struct {
	props map[string][]storage.Node
	types []string
}

func (m *Manager) remoteState(stmts []storage.Statement) remoteState {
	rs := remoteState{props: make(map[string][]storage.Node)}
	for _, st := range stmts {
		if st.Context != "" && st.Context != m.graph {
			continue
		}
		if st.Predicate == nao.RDFType {
			if st.Object.IsResource() {
				rs.types = append(rs.types, st.Object.Value)
			}
			continue
		}
		rs.props[st.Predicate] = append(rs.props[st.Predicate], st.Object)
	}
	return rs
}

// merge refreshes d from a fresh copy of the remote state. Local edits win:
//   - properties modified or deleted locally are kept as they are,
//   - unmodified properties take the remote value,
//   - unmodified properties missing remotely are dropped.
func (m *Manager) merge(ctx context.Context, d *Data) (*Data, error) {
	d, uri, err := m.resolve(ctx, d)
	if err != nil {
		return nil, err
	}

	stmts, err := m.fetch(ctx, uri)
	if err != nil {
		return d, m.fail(uri, ErrorCommunication, err)
	}
	rs := m.remoteState(stmts)

	d = m.lockLive(d)
	mergeLocked(d, rs)
	d.mu.Unlock()
	return d, nil
}

func mergeLocked(d *Data, rs remoteState) {
	for p, pv := range d.props {
		if pv.modified() {
			continue
		}
		if _, ok := rs.props[p]; !ok {
			delete(d.props, p)
		}
	}
	for p, nodes := range rs.props {
		if pv, ok := d.props[p]; ok && pv.modified() {
			continue
		}
		d.props[p] = &propertyValue{value: variant.FromNodes(nodes), nodes: nodes}
	}
	d.types = rs.types
	d.loaded = true
}

// ensureLoaded merges d once so that property reads see the remote state.
func (m *Manager) ensureLoaded(ctx context.Context, d *Data) (*Data, error) {
	d = m.lockLive(d)
	loaded := d.loaded
	d.mu.Unlock()
	if loaded {
		return d, nil
	}
	return m.merge(ctx, d)
}
