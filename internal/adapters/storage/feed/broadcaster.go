// Package feed fans user document writes out to watchers for the stores that have no
// native change stream.
package feed

import (
	"context"
	"sync"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

const bufferSize = 16

type subscriber struct {
	mu     sync.Mutex
	closed bool
	ch     chan domain.ChangeEvent
	done   <-chan struct{}
}

func (s *subscriber) send(ev domain.ChangeEvent, block bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if block {
		select {
		case s.ch <- ev:
		case <-s.done:
		}
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	close(s.ch)
}

// Broadcaster implements domain.ChangeFeed for in-process publishers.
type Broadcaster struct {
	mu      sync.Mutex
	users   map[domain.UserID]map[*subscriber]struct{}
	inserts map[*subscriber]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		users:   make(map[domain.UserID]map[*subscriber]struct{}),
		inserts: make(map[*subscriber]struct{}),
	}
}

// WatchUser subscribes to writes of one user document.
func (b *Broadcaster) WatchUser(ctx context.Context, id domain.UserID) (<-chan domain.ChangeEvent, error) {
	sub := &subscriber{ch: make(chan domain.ChangeEvent, bufferSize), done: ctx.Done()}

	b.mu.Lock()
	set, ok := b.users[id]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.users[id] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.users[id], sub)
		if len(b.users[id]) == 0 {
			delete(b.users, id)
		}
		b.mu.Unlock()
		sub.close()
	}()
	return sub.ch, nil
}

// WatchInserts subscribes to newly created user documents.
func (b *Broadcaster) WatchInserts(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	sub := &subscriber{ch: make(chan domain.ChangeEvent, bufferSize), done: ctx.Done()}

	b.mu.Lock()
	b.inserts[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.inserts, sub)
		b.mu.Unlock()
		sub.close()
	}()
	return sub.ch, nil
}

// Publish delivers ev to the interested subscribers. Modification events to a
// subscriber with a full buffer are dropped: watchers reload the document on every
// event, so a pending event already covers the newer write. Inserts are never dropped.
func (b *Broadcaster) Publish(ev domain.ChangeEvent) {
	b.mu.Lock()
	users := make([]*subscriber, 0, len(b.users[ev.UserID]))
	for sub := range b.users[ev.UserID] {
		users = append(users, sub)
	}
	var inserts []*subscriber
	if ev.Kind == domain.ChangeInserted {
		for sub := range b.inserts {
			inserts = append(inserts, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range users {
		sub.send(ev, false)
	}
	for _, sub := range inserts {
		sub.send(ev, true)
	}
}
