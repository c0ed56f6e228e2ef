package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

// WatchUser streams every write of one user document. The first snapshot (the
// current state) is not reported. A broken listener reports the error and reopens.
func (s *Store) WatchUser(ctx context.Context, id domain.UserID) (<-chan domain.ChangeEvent, error) {
	out := make(chan domain.ChangeEvent, 16)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			err := s.listenUser(ctx, id, out)
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			if !send(ctx, out, domain.ChangeEvent{UserID: id, Err: err}) || !s.pause(ctx) {
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) listenUser(ctx context.Context, id domain.UserID, out chan<- domain.ChangeEvent) error {
	it := s.userDoc(id).Snapshots(ctx)
	defer it.Stop()

	first := true
	for {
		snap, err := it.Next()
		if err != nil {
			return err
		}
		if first {
			first = false
			continue
		}
		if !snap.Exists() {
			continue
		}
		user, err := decodeSnapshot(snap)
		ev := domain.ChangeEvent{Kind: domain.ChangeModified, UserID: id, User: user, Err: err}
		if !send(ctx, out, ev) {
			return ctx.Err()
		}
	}
}

// WatchInserts streams added user documents. Each (re)opened listener starts by
// reporting every existing document as added; consumers must tolerate repeats.
func (s *Store) WatchInserts(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	out := make(chan domain.ChangeEvent, 16)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			err := s.listenInserts(ctx, out)
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			if !send(ctx, out, domain.ChangeEvent{Kind: domain.ChangeInserted, Err: err}) || !s.pause(ctx) {
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) listenInserts(ctx context.Context, out chan<- domain.ChangeEvent) error {
	it := s.usersCol().Snapshots(ctx)
	defer it.Stop()

	for {
		qs, err := it.Next()
		if err != nil {
			return err
		}
		for _, change := range qs.Changes {
			if change.Kind != firestore.DocumentAdded {
				continue
			}
			user, err := decodeSnapshot(change.Doc)
			ev := domain.ChangeEvent{
				Kind:   domain.ChangeInserted,
				UserID: domain.UserID(change.Doc.Ref.ID),
				User:   user,
				Err:    err,
			}
			if !send(ctx, out, ev) {
				return ctx.Err()
			}
		}
	}
}

func (s *Store) pause(ctx context.Context) bool {
	t := time.NewTimer(s.resubscribeDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func send(ctx context.Context, out chan<- domain.ChangeEvent, ev domain.ChangeEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
