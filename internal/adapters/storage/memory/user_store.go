package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PabloGalante/amika-agent/internal/adapters/storage/feed"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

// UserStore keeps user documents in memory and publishes every write on its feed.
// It is NOT persistent and is only suitable for development / local mode.
type UserStore struct {
	*feed.Broadcaster

	mu    sync.RWMutex
	users map[domain.UserID]*domain.User
	now   func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		Broadcaster: feed.NewBroadcaster(),
		users:       make(map[domain.UserID]*domain.User),
		now:         time.Now,
	}
}

func (s *UserStore) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	if _, exists := s.users[user.ID]; exists {
		s.mu.Unlock()
		return domain.ErrUserExists
	}
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := user.Clone()
	s.users[user.ID] = stored
	s.mu.Unlock()

	s.Publish(domain.ChangeEvent{Kind: domain.ChangeInserted, UserID: user.ID, User: stored.Clone()})
	return nil
}

func (s *UserStore) SaveUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	prev, exists := s.users[user.ID]
	if !exists {
		s.mu.Unlock()
		return domain.ErrUserNotFound
	}
	user.CreatedAt = prev.CreatedAt
	user.UpdatedAt = s.now().UTC()
	stored := user.Clone()
	s.users[user.ID] = stored
	s.mu.Unlock()

	s.Publish(domain.ChangeEvent{Kind: domain.ChangeModified, UserID: user.ID, User: stored.Clone()})
	return nil
}

func (s *UserStore) FindUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user.Clone(), nil
}

func (s *UserStore) ListUsers(_ context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
