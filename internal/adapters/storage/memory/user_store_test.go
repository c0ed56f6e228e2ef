package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/amika-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

func TestUserStoreLifecycleAndFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewUserStore()
	inserts, err := store.WatchInserts(ctx)
	require.NoError(t, err)

	user := &domain.User{ID: "u1", Email: "u1@example.com"}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.ErrorIs(t, store.CreateUser(ctx, user), domain.ErrUserExists)

	ev := <-inserts
	assert.Equal(t, domain.ChangeInserted, ev.Kind)
	assert.Equal(t, "u1@example.com", ev.User.Email)

	changes, err := store.WatchUser(ctx, "u1")
	require.NoError(t, err)

	got, err := store.FindUser(ctx, "u1")
	require.NoError(t, err)
	got.Relations = append(got.Relations, domain.Relation{ID: "r1", Name: "Jane"})
	require.NoError(t, store.SaveUser(ctx, got))

	select {
	case ev := <-changes:
		assert.Equal(t, domain.ChangeModified, ev.Kind)
		require.Len(t, ev.User.Relations, 1)
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}

	_, err = store.FindUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.ErrorIs(t, store.SaveUser(ctx, &domain.User{ID: "missing"}), domain.ErrUserNotFound)
}

func TestUserStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "u1", Relations: []domain.Relation{{ID: "r1", Name: "Jane"}}}))

	got, err := store.FindUser(ctx, "u1")
	require.NoError(t, err)
	got.Relations[0].Name = "mutated"

	again, err := store.FindUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", again.Relations[0].Name)
}

func TestOutboxListByRecipient(t *testing.T) {
	ctx := context.Background()
	box := memory.NewOutbox()
	for _, subject := range []string{"a", "b", "c"} {
		require.NoError(t, box.Send(ctx, domain.Notification{To: "x@example.com", Subject: subject}))
	}
	require.NoError(t, box.Send(ctx, domain.Notification{To: "y@example.com", Subject: "d"}))

	last := box.ListByRecipient("x@example.com", 2)
	require.Len(t, last, 2)
	assert.Equal(t, "b", last[0].Subject)
	assert.Equal(t, "c", last[1].Subject)
	assert.Equal(t, 4, box.Len())
}
