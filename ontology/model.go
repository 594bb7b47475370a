// Package ontology holds the class hierarchy used to validate resource types.
//
// Resolution needs two questions answered about classes: whether two classes
// are compatible (one is the other or a subclass of it) and which of two
// compatible classes is more specific. Both are answered from the transitive
// closure of rdfs:subClassOf, which is computed lazily per class and cached
// until the hierarchy changes.
package ontology

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/c360studio/semres/vocabulary/nao"
)

// Model is a concurrency-safe class hierarchy. The zero value is not usable;
// call New.
type Model struct {
	mu         sync.RWMutex
	parents    map[string][]string
	closures   map[string]map[string]struct{}
	generation uint64

	group singleflight.Group
}

// New returns an empty model. Every class is implicitly a subclass of
// rdfs:Resource.
func New() *Model {
	return &Model{
		parents:  make(map[string][]string),
		closures: make(map[string]map[string]struct{}),
	}
}

// Default returns a model containing the NAO and NIE classes the resource
// layer creates itself.
func Default() *Model {
	m := New()
	m.AddSubClass(nao.ClassTag, nao.RDFSResource)
	m.AddSubClass(nao.ClassSymbol, nao.RDFSResource)
	m.AddSubClass(nao.ClassInformationElement, nao.RDFSResource)
	m.AddSubClass(nao.ClassDataObject, nao.RDFSResource)
	return m
}

// AddSubClass records that child is a direct subclass of parent.
func (m *Model) AddSubClass(child, parent string) {
	if child == "" || parent == "" || child == parent {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.parents[child] {
		if p == parent {
			return
		}
	}
	m.parents[child] = append(m.parents[child], parent)
	if _, ok := m.parents[parent]; !ok {
		m.parents[parent] = nil
	}
	m.resetLocked()
}

// Replace swaps the whole hierarchy with the given child -> parents map.
func (m *Model) Replace(hierarchy map[string][]string) {
	parents := make(map[string][]string, len(hierarchy))
	for child, ps := range hierarchy {
		if _, ok := parents[child]; !ok {
			parents[child] = nil
		}
		for _, p := range ps {
			if p == child || p == "" {
				continue
			}
			parents[child] = append(parents[child], p)
			if _, ok := parents[p]; !ok {
				parents[p] = nil
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.parents = parents
	m.resetLocked()
}

func (m *Model) resetLocked() {
	m.closures = make(map[string]map[string]struct{})
	m.generation++
}

// Len returns the number of known classes.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parents)
}

// Has reports whether class is known to the model.
func (m *Model) Has(class string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.parents[class]
	return ok
}

// Superclasses returns every strict superclass of class, sorted.
func (m *Model) Superclasses(class string) []string {
	closure := m.closure(class)
	out := make([]string, 0, len(closure))
	for c := range closure {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// IsSubClassOf reports whether sub is a strict, possibly indirect, subclass of super.
func (m *Model) IsSubClassOf(sub, super string) bool {
	if sub == super {
		return false
	}
	if super == nao.RDFSResource {
		return true
	}
	_, ok := m.closure(sub)[super]
	return ok
}

// Compatible reports whether a resource of class a may be used where class b is
// expected or the other way around. An empty class is compatible with anything.
func (m *Model) Compatible(a, b string) bool {
	if a == "" || b == "" || a == b {
		return true
	}
	return m.IsSubClassOf(a, b) || m.IsSubClassOf(b, a)
}

// MoreSpecific returns whichever of a and b is the subclass of the other. For
// unrelated classes a is returned.
func (m *Model) MoreSpecific(a, b string) string {
	if a == "" {
		return b
	}
	if m.IsSubClassOf(b, a) {
		return b
	}
	return a
}

// closure returns the cached superclass set of class, computing it once for
// all concurrent callers.
func (m *Model) closure(class string) map[string]struct{} {
	m.mu.RLock()
	c, ok := m.closures[class]
	gen := m.generation
	m.mu.RUnlock()
	if ok {
		return c
	}

	v, _, _ := m.group.Do(class, func() (any, error) {
		m.mu.RLock()
		computed := m.walkLocked(class)
		current := m.generation
		m.mu.RUnlock()

		if current == gen {
			m.mu.Lock()
			if m.generation == gen {
				m.closures[class] = computed
			}
			m.mu.Unlock()
		}
		return computed, nil
	})
	return v.(map[string]struct{})
}

// walkLocked collects the ancestors of class breadth first. Cycles in the
// hierarchy are tolerated.
func (m *Model) walkLocked(class string) map[string]struct{} {
	seen := make(map[string]struct{})
	queue := append([]string(nil), m.parents[class]...)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == class {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		queue = append(queue, m.parents[c]...)
	}
	return seen
}
