package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "amika.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTripsRelations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	at := time.Date(2024, 8, 17, 9, 0, 0, 0, time.UTC)
	user := &domain.User{
		ID:    "g-1",
		Email: "jo@example.com",
		Relations: []domain.Relation{{
			ID:              "r1",
			Name:            "Jane",
			Pronouns:        "she/her",
			ContactHistory:  []domain.ContactHistory{{Date: "last summer", Topic: "hiking"}},
			ReminderEnabled: true,
			ReminderFrequency: []domain.ReminderFrequency{{
				Method:      "call",
				Frequency:   domain.RecurrenceSpec{StartDate: at, EndDate: at, Frequency: domain.FrequencyDaily},
				Occurrences: []time.Time{at},
			}},
		}},
	}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.ErrorIs(t, s.CreateUser(ctx, user), domain.ErrUserExists)

	got, err := s.FindUser(ctx, "g-1")
	require.NoError(t, err)
	require.Len(t, got.Relations, 1)
	rel := got.Relations[0]
	assert.Equal(t, "Jane", rel.Name)
	assert.Equal(t, "last summer", rel.ContactHistory[0].Date)
	assert.True(t, rel.ReminderFrequency[0].Occurrences[0].Equal(at))
	assert.Equal(t, domain.FrequencyDaily, rel.ReminderFrequency[0].Frequency.Frequency)
}

func TestStoreSavePublishesChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "g-1"}))
	changes, err := s.WatchUser(ctx, "g-1")
	require.NoError(t, err)

	u, err := s.FindUser(ctx, "g-1")
	require.NoError(t, err)
	u.FirstName = "Jo"
	require.NoError(t, s.SaveUser(ctx, u))

	select {
	case ev := <-changes:
		assert.Equal(t, "Jo", ev.User.FirstName)
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	assert.ErrorIs(t, s.SaveUser(ctx, &domain.User{ID: "nope"}), domain.ErrUserNotFound)
}
