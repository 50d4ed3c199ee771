// Package memory implementa core.Repository en memoria (dev/tests).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/guildgate/internal/store/core"
)

type Store struct {
	mu    sync.Mutex
	users map[string]core.VerifiedUser
}

func New() *Store {
	return &Store{users: make(map[string]core.VerifiedUser)}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) UpsertByExternalID(_ context.Context, u *core.VerifiedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// last write wins, una sola fila por ExternalID
	s.users[u.ExternalID] = *u
	return nil
}

func (s *Store) GetByExternalID(_ context.Context, externalID string) (*core.VerifiedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[externalID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (s *Store) List(context.Context) ([]core.VerifiedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.VerifiedUser, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VerifiedAt.Equal(out[j].VerifiedAt) {
			return out[i].ExternalID < out[j].ExternalID
		}
		return out[i].VerifiedAt.After(out[j].VerifiedAt)
	})
	return out, nil
}

func (s *Store) ListByExternalIDs(_ context.Context, externalIDs []string) ([]core.VerifiedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.VerifiedUser, 0, len(externalIDs))
	for _, id := range externalIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) DeleteByExternalID(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[externalID]; !ok {
		return core.ErrNotFound
	}
	delete(s.users, externalID)
	return nil
}

func (s *Store) Stats(_ context.Context, now time.Time) (core.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := core.Stats{Total: len(s.users)}
	cutoff := now.Add(-24 * time.Hour)
	for _, u := range s.users {
		if u.VerifiedAt.After(cutoff) {
			st.Last24h++
		}
		if u.HasAccessToken() {
			st.WithToken++
		}
	}
	return st, nil
}

func (s *Store) Close() {}
