package resource

import (
	"context"
	"sort"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

// AllResourcesOfType returns handles to every resource of class typ, combining
// the store with cached records that are not written yet. The caller releases
// the handles.
func (m *Manager) AllResourcesOfType(ctx context.Context, typ string) ([]*Resource, error) {
	uris, err := storage.Subjects(ctx, m.store, nao.RDFType, storage.NewResourceNode(typ))
	if err != nil {
		return nil, m.fail("", ErrorCommunication, err)
	}
	return m.collect(uris, func(d *Data) bool {
		for _, t := range d.typesLocked() {
			if t == typ {
				return true
			}
		}
		return false
	}, nil), nil
}

// AllResourcesWithProperty returns handles to every resource whose predicate
// has value among its values. Cached records with local edits of predicate
// take precedence over the store. The caller releases the handles.
func (m *Manager) AllResourcesWithProperty(ctx context.Context, predicate string, value variant.Variant) ([]*Resource, error) {
	seen := make(map[string]struct{})
	var uris []string
	for _, node := range value.Nodes() {
		subjects, err := storage.Subjects(ctx, m.store, predicate, node)
		if err != nil {
			return nil, m.fail("", ErrorCommunication, err)
		}
		for _, s := range subjects {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				uris = append(uris, s)
			}
		}
	}
	sort.Strings(uris)

	matches := func(d *Data) bool {
		v, ok := d.valueLocked(predicate)
		return ok && v.Contains(value)
	}
	// A local edit of predicate overrides what the store says.
	overridden := func(d *Data) bool {
		pv, ok := d.props[predicate]
		return ok && pv.modified()
	}
	return m.collect(uris, matches, overridden), nil
}

// collect returns handles for the store hits plus every cached record that
// matches locally. Store hits whose cached record is overridden and no longer
// matches are left out.
func (m *Manager) collect(uris []string, matches, overridden func(*Data) bool) []*Resource {
	var (
		out  []*Resource
		seen = make(map[ID]struct{})
	)

	for _, d := range m.snapshot() {
		d = m.lockLive(d)
		uri := d.uri
		ok := matches(d)
		skip := !ok && overridden != nil && overridden(d)
		d.mu.Unlock()

		if skip && uri != "" {
			seen[d.id] = struct{}{}
			uris = removeString(uris, uri)
			continue
		}
		if ok {
			if h := m.handleFor(d.id); h != nil {
				seen[h.id] = struct{}{}
				if uri != "" {
					uris = removeString(uris, uri)
				}
				out = append(out, h)
			}
		}
	}

	for _, uri := range uris {
		h := m.Resource(uri, "")
		if _, dup := seen[h.ID()]; dup {
			h.Release()
			continue
		}
		seen[h.ID()] = struct{}{}
		out = append(out, h)
	}
	return out
}

// handleFor returns a new handle to the live record id, or nil if it was evicted.
func (m *Manager) handleFor(id ID) *Resource {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.records[m.canonicalLocked(id)]
	if !ok {
		return nil
	}
	d.refs++
	return &Resource{m: m, id: d.id}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
