package resource

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/variant"
)

// Resource is a reference-counted handle to a cached resource. Handles are
// cheap; all handles for the same resource share one record. A handle must be
// released exactly once.
type Resource struct {
	m        *Manager
	id       ID
	released atomic.Bool
}

func (r *Resource) data() (*Data, error) {
	if r.released.Load() {
		return nil, ErrReleased
	}
	d, ok := r.m.lookup(r.id)
	if !ok {
		return nil, ErrReleased
	}
	return d, nil
}

// ID returns the arena ID of the record the handle points to.
func (r *Resource) ID() ID {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.canonicalLocked(r.id)
}

// URI returns the canonical URI, resolving the kickoff string on first use.
func (r *Resource) URI(ctx context.Context) (string, error) {
	d, err := r.data()
	if err != nil {
		return "", err
	}
	_, uri, err := r.m.resolve(ctx, d)
	return uri, err
}

// KickoffURIOrID returns the string the record was created from.
func (r *Resource) KickoffURIOrID() string {
	d, err := r.data()
	if err != nil {
		return ""
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	return d.kickoff
}

// Type returns the type the resource was requested with.
func (r *Resource) Type() string {
	d, err := r.data()
	if err != nil {
		return ""
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	return d.typ
}

// Types returns the requested type together with all stored types.
func (r *Resource) Types(ctx context.Context) ([]string, error) {
	d, err := r.loaded(ctx)
	if err != nil {
		return nil, err
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	return d.typesLocked(), nil
}

// HasType reports whether the resource is of class typ or one of its subclasses.
func (r *Resource) HasType(ctx context.Context, typ string) (bool, error) {
	types, err := r.Types(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range types {
		if t == typ || (r.m.onto != nil && r.m.onto.IsSubClassOf(t, typ)) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resource) loaded(ctx context.Context) (*Data, error) {
	d, err := r.data()
	if err != nil {
		return nil, err
	}
	return r.m.ensureLoaded(ctx, d)
}

// Property returns the value of predicate. A missing property yields an
// invalid variant and no error.
func (r *Resource) Property(ctx context.Context, predicate string) (variant.Variant, error) {
	d, err := r.loaded(ctx)
	if err != nil {
		return variant.Variant{}, err
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	v, _ := d.valueLocked(predicate)
	return v, nil
}

// HasProperty reports whether predicate has a value.
func (r *Resource) HasProperty(ctx context.Context, predicate string) (bool, error) {
	d, err := r.loaded(ctx)
	if err != nil {
		return false, err
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	_, ok := d.valueLocked(predicate)
	return ok, nil
}

// Properties returns every property with a value.
func (r *Resource) Properties(ctx context.Context) (map[string]variant.Variant, error) {
	d, err := r.loaded(ctx)
	if err != nil {
		return nil, err
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	out := make(map[string]variant.Variant, len(d.props))
	for _, p := range d.predicatesLocked() {
		out[p] = d.props[p].value
	}
	return out, nil
}

// SetProperty replaces the value of predicate locally. Setting an invalid
// variant removes the property.
func (r *Resource) SetProperty(predicate string, v variant.Variant) error {
	if !v.IsValid() {
		return r.RemoveProperty(predicate)
	}
	d, err := r.data()
	if err != nil {
		return err
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	d.setLocked(predicate, v)
	return nil
}

// AddProperty appends v to the current values of predicate.
func (r *Resource) AddProperty(ctx context.Context, predicate string, v variant.Variant) error {
	d, err := r.loaded(ctx)
	if err != nil {
		return err
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()

	current, ok := d.valueLocked(predicate)
	if !ok {
		d.setLocked(predicate, v)
		return nil
	}
	merged, err := current.Append(v)
	if err != nil {
		return fmt.Errorf("add property %s: %w", predicate, err)
	}
	d.setLocked(predicate, merged)
	return nil
}

// RemoveProperty deletes predicate locally. The deletion is written on the
// next sync and survives merges until then.
func (r *Resource) RemoveProperty(predicate string) error {
	d, err := r.data()
	if err != nil {
		return err
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	d.deleteLocked(predicate)
	return nil
}

// Modified reports whether the resource carries unsynced local edits.
func (r *Resource) Modified() bool {
	d, err := r.data()
	if err != nil {
		return false
	}
	d = r.m.lockLive(d)
	defer d.mu.Unlock()
	return d.dirtyLocked()
}

// Exists reports whether the store knows the resource.
func (r *Resource) Exists(ctx context.Context) (bool, error) {
	d, err := r.data()
	if err != nil {
		return false, err
	}
	_, uri, err := r.m.resolve(ctx, d)
	if err != nil {
		return false, err
	}
	ok, err := storage.Contains(ctx, r.m.store, uri)
	if err != nil {
		return false, r.m.fail(uri, ErrorCommunication, err)
	}
	return ok, nil
}

// Remove deletes every statement about the resource, as subject and as
// object, and clears the cached properties.
func (r *Resource) Remove(ctx context.Context) error {
	d, err := r.data()
	if err != nil {
		return err
	}
	d, uri, err := r.m.resolve(ctx, d)
	if err != nil {
		return err
	}
	if err := storage.RemoveResource(ctx, r.m.store, uri); err != nil {
		return r.m.fail(uri, ErrorCommunication, err)
	}

	d = r.m.lockLive(d)
	d.props = make(map[string]*propertyValue)
	d.types = nil
	d.loaded = true
	d.removed = true
	d.mu.Unlock()

	r.m.logger.Debug("Removed resource", "uri", uri)
	return nil
}

// Merge refreshes the cached properties from the store, keeping local edits.
func (r *Resource) Merge(ctx context.Context) error {
	d, err := r.data()
	if err != nil {
		return err
	}
	_, err = r.m.merge(ctx, d)
	return err
}

// Sync merges and writes the resource back to the store.
func (r *Resource) Sync(ctx context.Context) error {
	d, err := r.data()
	if err != nil {
		return err
	}
	return r.m.sync(ctx, d)
}

// Equal reports whether both handles refer to the same resource.
func (r *Resource) Equal(other *Resource) bool {
	if other == nil || r.m != other.m {
		return false
	}
	if r.ID() == other.ID() {
		return true
	}

	a, errA := r.data()
	b, errB := other.data()
	if errA != nil || errB != nil {
		return false
	}
	a = r.m.lockLive(a)
	ua := a.uri
	a.mu.Unlock()
	b = r.m.lockLive(b)
	ub := b.uri
	b.mu.Unlock()
	return ua != "" && ua == ub
}

// Release drops the handle's reference. Further use of the handle returns
// ErrReleased.
func (r *Resource) Release() {
	if r.released.Swap(true) {
		return
	}
	r.m.release(r.id)
}
