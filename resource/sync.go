package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/semres/storage"
	"github.com/c360studio/semres/vocabulary/nao"
)

// sync merges d with the remote state and writes the result back by removing
// every statement of the resource and adding the merged set. The write is a
// single attempt.
func (m *Manager) sync(ctx context.Context, d *Data) error {
	d, uri, err := m.resolve(ctx, d)
	if err != nil {
		syncs.WithLabelValues("error").Inc()
		return err
	}

	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	merged, err := m.merge(ctx, d)
	if err != nil {
		syncs.WithLabelValues("error").Inc()
		return err
	}
	d = merged

	d = m.lockLive(d)
	if d.removed && !d.dirtyLocked() {
		d.mu.Unlock()
		m.logger.Debug("Skipped sync of removed resource", "uri", uri)
		return nil
	}
	stmts := m.statementsLocked(d, uri)
	version := d.edits
	d.mu.Unlock()

	if err := storage.Replace(ctx, m.store, uri, m.graph, stmts); err != nil {
		syncs.WithLabelValues("error").Inc()
		return m.fail(uri, ErrorCommunication, err)
	}

	d = m.lockLive(d)
	for p, pv := range d.props {
		if pv.version > version {
			continue
		}
		if pv.deleted() {
			delete(d.props, p)
			continue
		}
		pv.flags = 0
	}
	d.types = d.typesLocked()
	d.removed = false
	d.mu.Unlock()

	syncs.WithLabelValues("success").Inc()
	m.logger.Debug("Synced resource", "uri", uri, "statements", len(stmts))

	if m.observer != nil {
		if err := m.observer.ResourceSynced(ctx, uri, stmts); err != nil {
			m.logger.Warn("Sync observer failed", "uri", uri, "error", err)
		}
	}
	return nil
}

// statementsLocked renders every live property of d plus its types.
func (m *Manager) statementsLocked(d *Data, uri string) []storage.Statement {
	var stmts []storage.Statement
	seen := make(map[string]struct{})
	add := func(st storage.Statement) {
		k := st.Key()
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		stmts = append(stmts, st)
	}

	for _, t := range d.typesLocked() {
		add(storage.Statement{Subject: uri, Predicate: nao.RDFType, Object: storage.NewResourceNode(t), Context: m.graph})
	}
	for _, p := range d.predicatesLocked() {
		for _, node := range d.props[p].objects() {
			add(storage.Statement{Subject: uri, Predicate: p, Object: node, Context: m.graph})
		}
	}
	return stmts
}

// Sync writes every record with unsynced edits and evicts released records
// that no longer need to be kept. It returns the joined errors of all failed
// writes.
func (m *Manager) Sync(ctx context.Context) error {
	var errs []error
	n := 0
	for _, d := range m.snapshot() {
		d.mu.Lock()
		dirty := d.dirtyLocked()
		d.mu.Unlock()
		if !dirty {
			continue
		}
		n++
		if err := m.sync(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	m.reclaim()

	if len(errs) > 0 {
		return fmt.Errorf("sync %d of %d resources failed: %w", len(errs), n, errors.Join(errs...))
	}
	return nil
}

// reclaim evicts unreferenced records that have no unsynced edits left.
func (m *Manager) reclaim() {
	m.mu.Lock()
	var idle []*Data
	for _, d := range m.records {
		if d.refs <= 0 {
			idle = append(idle, d)
		}
	}
	m.mu.Unlock()

	for _, d := range idle {
		d.mu.Lock()
		dirty := d.dirtyLocked()
		d.mu.Unlock()
		if dirty {
			continue
		}
		m.mu.Lock()
		if d.refs <= 0 {
			m.evictLocked(d)
		}
		m.mu.Unlock()
	}
}

// StartAutoSync flushes all dirty records every interval until ctx is done or
// StopAutoSync is called. Starting an already running loop is a no-op.
func (m *Manager) StartAutoSync(ctx context.Context, interval time.Duration) {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.stopLoop != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.stopLoop = cancel
	m.loopDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.logger.Info("Auto-sync started", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Sync(ctx); err != nil {
					m.logger.Warn("Auto-sync failed", "error", err)
				}
			}
		}
	}()
}

// StopAutoSync stops the auto-sync loop and waits for it to exit. With
// auto-sync enabled, remaining dirty records are flushed once more.
func (m *Manager) StopAutoSync() {
	m.loopMu.Lock()
	cancel, done := m.stopLoop, m.loopDone
	m.stopLoop, m.loopDone = nil, nil
	m.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if m.autoSync {
		ctx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		if err := m.Sync(ctx); err != nil {
			m.logger.Warn("Final sync failed", "error", err)
		}
	}
}
