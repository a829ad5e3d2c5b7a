// Package postmgr implements the Profiles collaborator (spec.md §6):
// named posting identities (display name, address, signature, extra
// headers) that a posting task attaches to an outgoing article.
// Adapted from go-pugleaf's internal/postmgr package: same
// log-prefixed style and mutex-guarded manager shape, repurposed from a
// database-backed post queue worker to an in-memory profile registry
// persisted as posting.xml (spec.md §4.9).
package postmgr

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Profile is one posting identity.
type Profile struct {
	Name         string // profile name, unique key
	DisplayName  string
	Address      string
	Signature    string
	ExtraHeaders map[string]string
}

// Manager owns every configured posting profile.
type Manager struct {
	mux      sync.RWMutex
	profiles map[string]*Profile
	persist  func(*Manager) error
}

// New creates an empty profile manager. persist, if non-nil, is
// invoked after every mutation (Add/Delete), mirroring the
// mutate-then-persist contract used throughout this package's siblings.
func New(persist func(*Manager) error) *Manager {
	return &Manager{profiles: make(map[string]*Profile), persist: persist}
}

// Get returns the named profile.
func (m *Manager) Get(name string) (*Profile, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	p, ok := m.profiles[name]
	return p, ok
}

// List returns every profile, sorted by name.
func (m *Manager) List() []*Profile {
	m.mux.RLock()
	defer m.mux.RUnlock()
	names := make([]string, 0, len(m.profiles))
	for n := range m.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Profile, 0, len(names))
	for _, n := range names {
		out = append(out, m.profiles[n])
	}
	return out
}

// Add registers or replaces a profile.
func (m *Manager) Add(p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("postmgr: profile name must not be empty")
	}
	m.mux.Lock()
	m.profiles[p.Name] = p
	m.mux.Unlock()
	return m.afterMutation()
}

// Delete removes a profile by name.
func (m *Manager) Delete(name string) error {
	m.mux.Lock()
	_, existed := m.profiles[name]
	delete(m.profiles, name)
	m.mux.Unlock()
	if !existed {
		return fmt.Errorf("postmgr: unknown profile %q", name)
	}
	return m.afterMutation()
}

func (m *Manager) afterMutation() error {
	if m.persist == nil {
		return nil
	}
	if err := m.persist(m); err != nil {
		log.Printf("[POSTMGR] persist posting profiles failed, will retry on next save: %v", err)
		return err
	}
	return nil
}
