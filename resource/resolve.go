package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
	"github.com/c360studio/semres/vocabulary/nao"
)

// resolve returns the canonical record of d together with its URI,
// determining the URI against the store on first use. Resolution runs at most
// once per record; concurrent callers wait on the record's mutex.
func (m *Manager) resolve(ctx context.Context, d *Data) (*Data, string, error) {
	d = m.lockLive(d)
	if d.uri != "" {
		uri := d.uri
		d.mu.Unlock()
		return d, uri, nil
	}

	uri, outcome, typeErr, err := m.determineURI(ctx, d.kickoff, d.typ)
	if err != nil {
		kickoff := d.kickoff
		d.mu.Unlock()
		resolutions.WithLabelValues(outcomeError).Inc()
		return nil, "", m.fail(kickoff, ErrorCommunication, err)
	}

	d.uri = uri
	switch outcome {
	case outcomeMinted:
		if d.kickoff != "" {
			d.setLocked(nao.Identifier, variant.NewString(d.kickoff))
		}
		d.loaded = true
	case outcomeNewURI:
		d.loaded = true
	}
	d.mu.Unlock()

	resolutions.WithLabelValues(outcome).Inc()
	m.logger.Debug("Resolved resource", "kickoff", d.kickoff, "uri", uri, "outcome", outcome)
	if typeErr != nil {
		m.fail(uri, ErrorInvalidType, typeErr)
	}

	return m.register(d, uri), uri, nil
}

// determineURI maps a kickoff string to a URI:
//  1. an empty kickoff gets a fresh URI,
//  2. a kickoff the store knows as a subject or object is the URI,
//  3. otherwise a resource carrying the kickoff as nao:identifier is reused,
//     preferring the most specific type compatible with typ,
//  4. otherwise an absolute URI is taken as is and anything else gets a fresh URI.
//
// typeErr is set when an existing URI is stored only with incompatible types.
func (m *Manager) determineURI(ctx context.Context, kickoff, typ string) (uri, outcome string, typeErr, err error) {
	if kickoff == "" {
		return m.mint(), outcomeMinted, nil, nil
	}

	exists, err := storage.Contains(ctx, m.store, kickoff)
	if err != nil {
		return "", "", nil, fmt.Errorf("check existence: %w", err)
	}
	if exists {
		if m.typed(typ) {
			types, err := storage.Types(ctx, m.store, kickoff)
			if err != nil {
				return "", "", nil, err
			}
			if len(types) > 0 && !m.anyCompatible(types, typ) {
				typeErr = fmt.Errorf("%w: stored as %v, requested %s", ErrInvalidType, types, typ)
			}
		}
		return kickoff, outcomeURI, typeErr, nil
	}

	candidates, err := storage.FindByIdentifier(ctx, m.store, kickoff)
	if err != nil {
		return "", "", nil, fmt.Errorf("find by identifier: %w", err)
	}
	if uri, ok := m.pick(candidates, typ); ok {
		return uri, outcomeIdentifier, nil, nil
	}

	if isAbsoluteURI(kickoff) {
		return kickoff, outcomeNewURI, nil, nil
	}
	return m.mint(), outcomeMinted, nil, nil
}

func (m *Manager) mint() string {
	return m.uriPrefix + uuid.NewString()
}

// typed reports whether typ carries information the ontology can check.
func (m *Manager) typed(typ string) bool {
	return m.onto != nil && typ != "" && typ != nao.RDFSResource
}

func (m *Manager) anyCompatible(types []string, typ string) bool {
	for _, t := range types {
		if m.onto.Compatible(t, typ) {
			return true
		}
	}
	return false
}

// pick chooses among identifier matches. Without type information the first
// candidate wins; otherwise the candidate with the most specific compatible
// type does.
func (m *Manager) pick(candidates []storage.Candidate, typ string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if !m.typed(typ) {
		return candidates[0].URI, true
	}

	var best, bestType string
	for _, c := range candidates {
		types := c.Types
		if len(types) == 0 {
			types = []string{nao.RDFSResource}
		}
		for _, t := range types {
			if !m.onto.Compatible(t, typ) {
				continue
			}
			if best == "" || m.onto.IsSubClassOf(t, bestType) {
				best, bestType = c.URI, t
			}
		}
	}
	return best, best != ""
}

func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Opaque != "" || u.Host != "" || u.Path != ""
}

// lockLive locks d, or the record it collapsed into, and returns the locked record.
func (m *Manager) lockLive(d *Data) *Data {
	for {
		d.mu.Lock()
		if d.mergedInto == 0 {
			return d
		}
		next := d.mergedInto
		d.mu.Unlock()

		nd, ok := m.lookup(next)
		if !ok {
			d.mu.Lock()
			return d
		}
		d = nd
	}
}

// register indexes d under uri. If another record already owns the URI, d
// collapses into it and the owner is returned.
func (m *Manager) register(d *Data, uri string) *Data {
	m.mu.Lock()
	if id, ok := m.byURI[uri]; ok {
		if owner, ok := m.records[m.canonicalLocked(id)]; ok && owner != d {
			m.redirects[d.id] = owner.id
			owner.aliases = append(owner.aliases, d.id)
			owner.aliases = append(owner.aliases, d.aliases...)
			for _, k := range d.kickoffs {
				m.byKickoff[k] = owner.id
			}
			owner.kickoffs = append(owner.kickoffs, d.kickoffs...)
			owner.refs += d.refs
			d.refs = 0
			d.kickoffs, d.aliases = nil, nil
			delete(m.records, d.id)
			m.mu.Unlock()

			m.collapse(d, owner)
			return owner
		}
	}
	m.byURI[uri] = d.id
	d.indexedURI = uri
	m.mu.Unlock()
	return d
}

// collapse moves the pending edits of from onto into. Handles still pointing
// at from are redirected by the manager's redirect table.
func (m *Manager) collapse(from, into *Data) {
	from.mu.Lock()
	from.mergedInto = into.id
	pending := from.pendingLocked()
	from.props = make(map[string]*propertyValue)
	from.mu.Unlock()

	if len(pending) > 0 {
		into.mu.Lock()
		for p, pv := range pending {
			into.edits++
			pv.version = into.edits
			into.props[p] = &pv
		}
		into.mu.Unlock()
	}

	m.logger.Debug("Collapsed resource record", "kickoff", from.kickoff, "into", into.id, "pending", len(pending))
}
