package content

import (
	"context"
	"time"
)

// Status summarizes the content a repository is serving.
type Status struct {
	Meta     Meta      `json:"meta"`
	LoadedAt time.Time `json:"loaded_at"`
	Posts    int       `json:"posts"`
	Members  int       `json:"members"`
	Groups   int       `json:"groups"`
}

// Status reports the active snapshot, or ErrNotReady.
func (m *Manager) Status(context.Context) (Status, error) {
	s, ok := m.Get()
	if !ok {
		return Status{}, ErrNotReady
	}
	p, mem, g := s.Counts()
	return Status{Meta: s.Meta, LoadedAt: s.LoadedAt, Posts: p, Members: mem, Groups: g}, nil
}
