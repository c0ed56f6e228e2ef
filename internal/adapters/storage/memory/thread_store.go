package memory

import (
	"sync"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// ThreadStore keeps agent thread turns in insertion order.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[domain.ThreadID][]domain.Turn
}

func NewThreadStore() *ThreadStore {
	return &ThreadStore{
		threads: make(map[domain.ThreadID][]domain.Turn),
	}
}

func (s *ThreadStore) CreateThread(id domain.ThreadID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[id]; !ok {
		s.threads[id] = nil
	}
}

func (s *ThreadStore) Exists(id domain.ThreadID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.threads[id]
	return ok
}

func (s *ThreadStore) AppendTurn(id domain.ThreadID, turn domain.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[id] = append(s.threads[id], turn)
}

// Turns returns the last `limit` turns oldest first. If limit <= 0, returns all.
func (s *ThreadStore) Turns(id domain.ThreadID, limit int) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.threads[id]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]domain.Turn(nil), turns...)
}
