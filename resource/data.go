package resource

import (
	"sort"
	"sync"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
)

// ID addresses a record in the manager's arena. IDs are never reused.
type ID uint64

type propertyFlags uint8

const (
	flagModified propertyFlags = 1 << iota
	flagDeleted
)

type propertyValue struct {
	value variant.Variant
	flags propertyFlags

	// nodes are the objects last loaded from the store. Unmodified values are
	// written back from them so language tags, datatypes and mixed lists survive.
	nodes []storage.Node

	// version is the record edit counter at the time of the last local write.
	version uint64
}

func (pv *propertyValue) modified() bool {
	return pv.flags&(flagModified|flagDeleted) != 0
}

func (pv *propertyValue) deleted() bool {
	return pv.flags&flagDeleted != 0
}

// Data is one cached resource. The fields below mu up to mergedInto are
// guarded by it.
type Data struct {
	id ID

	// syncMu serialises write-backs of this record.
	syncMu sync.Mutex

	mu      sync.Mutex
	kickoff string
	typ     string
	uri     string
	props   map[string]*propertyValue
	types   []string
	loaded  bool
	edits   uint64

	// removed is set by Remove and cleared by the next write-back. A removed
	// record without later edits is not written again.
	removed bool

	// mergedInto is non-zero once the record collapsed into another one.
	mergedInto ID

	// Guarded by the manager: reference count and the index entries that
	// point at this record.
	refs       int
	indexedURI string
	kickoffs   []string
	aliases    []ID
}

func newData(id ID, kickoff, typ string) *Data {
	return &Data{
		id:      id,
		kickoff: kickoff,
		typ:     typ,
		props:   make(map[string]*propertyValue),
	}
}

// setLocked records a local write.
func (d *Data) setLocked(predicate string, v variant.Variant) {
	d.edits++
	d.props[predicate] = &propertyValue{value: v, flags: flagModified, version: d.edits}
}

// deleteLocked records a local removal.
func (d *Data) deleteLocked(predicate string) {
	d.edits++
	d.props[predicate] = &propertyValue{flags: flagDeleted, version: d.edits}
}

// valueLocked returns the live value of predicate.
func (d *Data) valueLocked(predicate string) (variant.Variant, bool) {
	pv, ok := d.props[predicate]
	if !ok || pv.deleted() {
		return variant.Variant{}, false
	}
	return pv.value, true
}

// objects returns the nodes to write for pv.
func (pv *propertyValue) objects() []storage.Node {
	if pv.modified() || pv.nodes == nil {
		return pv.value.Nodes()
	}
	return pv.nodes
}

// dirtyLocked reports whether the record carries unsynced local edits.
func (d *Data) dirtyLocked() bool {
	for _, pv := range d.props {
		if pv.modified() {
			return true
		}
	}
	return false
}

// pendingLocked returns copies of the locally modified properties.
func (d *Data) pendingLocked() map[string]propertyValue {
	out := make(map[string]propertyValue)
	for p, pv := range d.props {
		if pv.modified() {
			out[p] = *pv
		}
	}
	return out
}

// predicatesLocked returns the predicates with a live value, sorted.
func (d *Data) predicatesLocked() []string {
	out := make([]string, 0, len(d.props))
	for p, pv := range d.props {
		if !pv.deleted() {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// typesLocked returns the requested type together with the stored ones.
func (d *Data) typesLocked() []string {
	seen := make(map[string]struct{}, len(d.types)+1)
	out := make([]string, 0, len(d.types)+1)
	for _, t := range append([]string{d.typ}, d.types...) {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
