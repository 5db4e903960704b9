package service

import (
	"context"
	"sort"
	"time"

	"github.com/atinyakov/CredKeeper/internal/store"
	"go.uber.org/zap"
)

// Save persists every domain, prunes the stored data of removed domains and
// flushes both stores. It returns false only when the secure store has no
// master password; other failures are logged.
func (m *CredentialsModel) Save(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.domains))
	for id := range m.domains {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		err := m.domains[id].Save(ctx, m.prefs.Node(id), m.secure.Node(id))
		if err == nil {
			continue
		}
		if isNoPassword(err) {
			m.log.Warn("secure storage has no master password, credentials not saved",
				zap.String("domain", id))
			return false
		}
		m.log.Error("error saving credential domain", zap.String("domain", id), zap.Error(err))
	}

	m.pruneRemoved(ctx, m.prefs)
	m.pruneRemoved(ctx, m.secure)

	for _, n := range []store.Node{m.prefs, m.secure} {
		if err := n.Flush(ctx); err != nil {
			if isNoPassword(err) {
				m.log.Warn("secure storage has no master password, credentials not flushed")
				return false
			}
			m.log.Error("error flushing credential storage", zap.String("path", n.Path()), zap.Error(err))
		}
	}

	m.dirty = false
	return true
}

// pruneRemoved deletes child nodes of base that belong to no domain. Callers
// hold m.mu.
func (m *CredentialsModel) pruneRemoved(ctx context.Context, base store.Node) {
	names, err := base.ChildrenNames(ctx)
	if err != nil {
		m.log.Error("error listing saved credential domains", zap.String("path", base.Path()), zap.Error(err))
		return
	}
	for _, name := range names {
		if _, ok := m.domains[name]; ok {
			continue
		}
		if err := base.Node(name).RemoveNode(ctx); err != nil {
			m.log.Error("error removing saved credential domain",
				zap.String("path", base.Path()), zap.String("domain", name), zap.Error(err))
		}
	}
}

// Dirty reports whether the model changed since the last successful save.
func (m *CredentialsModel) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// StartAutoSave saves the model every interval while it is dirty, until ctx
// is done.
func (m *CredentialsModel) StartAutoSave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !m.Dirty() {
					continue
				}
				if !m.Save(ctx) {
					m.log.Warn("autosave skipped, secure storage is locked")
					continue
				}
				m.log.Debug("credentials autosaved")
			}
		}
	}()
}
