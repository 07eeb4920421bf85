package content

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/opengraph"
)

// ErrNotReady is returned by Manager lookups before any snapshot is active.
var ErrNotReady = errors.New("content: no active snapshot")

// Manager holds the active Snapshot. Readers never block; a swap is a
// single pointer store and readers holding the old snapshot finish on it.
type Manager struct {
	active atomic.Pointer[Snapshot]
}

func NewManager() *Manager { return &Manager{} }

// Set activates a copy of s, stamping LoadedAt when unset.
func (m *Manager) Set(s Snapshot) {
	if s.LoadedAt.IsZero() {
		s.LoadedAt = time.Now().UTC()
	}
	m.active.Store(&s)
}

// Get is the active snapshot. ok stays false until an indexed snapshot is set.
func (m *Manager) Get() (*Snapshot, bool) {
	s := m.active.Load()
	return s, s != nil && s.posts != nil
}

func lookup[T any](m *Manager, find func(*Snapshot) (T, error)) (T, error) {
	s, ok := m.Get()
	if !ok {
		var zero T
		return zero, ErrNotReady
	}
	return find(s)
}

func (m *Manager) Post(ctx context.Context, id int64) (opengraph.Post, error) {
	return lookup(m, func(s *Snapshot) (opengraph.Post, error) { return s.Post(ctx, id) })
}

func (m *Manager) Member(ctx context.Context, id int64) (opengraph.Member, error) {
	return lookup(m, func(s *Snapshot) (opengraph.Member, error) { return s.Member(ctx, id) })
}

func (m *Manager) Group(ctx context.Context, id int64) (opengraph.Group, error) {
	return lookup(m, func(s *Snapshot) (opengraph.Group, error) { return s.Group(ctx, id) })
}

func (m *Manager) ReadyErr() error {
	if _, ok := m.Get(); !ok {
		return ErrNotReady
	}
	return nil
}

var noSnapshot = &Snapshot{Meta: Meta{Source: SourceUnknown}}

// current never returns nil; before the first Set it is an empty snapshot.
func (m *Manager) current() *Snapshot {
	if s := m.active.Load(); s != nil {
		return s
	}
	return noSnapshot
}

// ContentVersion and ContentHash feed the X-Content-* response headers.
func (m *Manager) ContentVersion() string { return m.current().Meta.Version }
func (m *Manager) ContentHash() string    { return m.current().Meta.Hash }

func (m *Manager) Source() Source      { return m.current().Meta.Source }
func (m *Manager) LoadedAt() time.Time { return m.current().LoadedAt }
