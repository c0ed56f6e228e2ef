package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

type Store struct {
	client *firestore.Client
	now    func() time.Time

	// resubscribeDelay is how long a broken snapshot listener waits before reopening.
	resubscribeDelay time.Duration
}

// NewStore creates a Firestore store.
// Uses the project passed (AMIKA_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client, now: time.Now, resubscribeDelay: time.Second}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) usersCol() *firestore.CollectionRef {
	return s.client.Collection("users")
}

func (s *Store) userDoc(id domain.UserID) *firestore.DocumentRef {
	return s.usersCol().Doc(string(id))
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*domain.User, error) {
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode userDoc: %w", err)
	}
	return doc.toDomain(domain.UserID(snap.Ref.ID)), nil
}

// ─────────────────────────────────────────
// UserStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := s.userDoc(user.ID).Create(ctx, newUserDoc(user))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return domain.ErrUserExists
		}
		return fmt.Errorf("firestore CreateUser: %w", err)
	}
	return nil
}

// SaveUser replaces the whole document inside a transaction so CreatedAt survives
// and a concurrently deleted user is reported instead of resurrected.
func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	ref := s.userDoc(user.ID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrUserNotFound
			}
			return err
		}
		prev, err := decodeSnapshot(snap)
		if err != nil {
			return err
		}
		user.CreatedAt = prev.CreatedAt
		user.UpdatedAt = s.now().UTC()
		return tx.Set(ref, newUserDoc(user))
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("firestore SaveUser: %w", err)
	}
	return nil
}

func (s *Store) FindUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	snap, err := s.userDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("firestore FindUser: %w", err)
	}
	return decodeSnapshot(snap)
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	iter := s.usersCol().Documents(ctx)
	defer iter.Stop()

	var out []*domain.User
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore ListUsers: %w", err)
		}
		u, err := decodeSnapshot(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
