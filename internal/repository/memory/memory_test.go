package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shestoi/providerhub/internal/repository"
)

func TestTokenRepository_UpsertKeepsOneRowPerUser(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository()

	require.NoError(t, repo.UpsertToken(ctx, "user-1", "tok-a"))
	require.NoError(t, repo.UpsertToken(ctx, "user-1", "tok-b"))

	got, err := repo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-b", got.Token)
	assert.False(t, got.UpdatedAt.IsZero())
	assert.Equal(t, 1, repo.Len())
}

func TestTokenRepository_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.UpsertToken(ctx, "user-1", "tok")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.Len())
}

func TestTokenRepository_GetByUserID_NotFound(t *testing.T) {
	_, err := NewTokenRepository().GetByUserID(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepository()

	_, err := repo.Get(ctx, repository.SessionKeyUserID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Set(ctx, repository.SessionKeyUserID, "user-1"))
	require.NoError(t, repo.Set(ctx, repository.SessionKeyUsername, "alice"))

	v, err := repo.Get(ctx, repository.SessionKeyUserID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", v)

	require.NoError(t, repo.Delete(ctx, repository.SessionKeyUserID, "absent"))
	_, err = repo.Get(ctx, repository.SessionKeyUserID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	v, err = repo.Get(ctx, repository.SessionKeyUsername)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)
}

func TestProcessedOrdersStore_MarkIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewProcessedOrdersStore()

	added, err := store.MarkIfAbsent(ctx, "ORD1")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.MarkIfAbsent(ctx, "ORD1")
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, store.Clear(ctx))

	added, err = store.MarkIfAbsent(ctx, "ORD1")
	require.NoError(t, err)
	assert.True(t, added)
}

func TestProcessedOrdersStore_ConcurrentMarkOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := NewProcessedOrdersStore()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if added, _ := store.MarkIfAbsent(ctx, "ORD1"); added {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestNotificationRepository_SaveCopiesData(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository()

	data := map[string]string{"booking_id": "b-1"}
	require.NoError(t, repo.Save(ctx, repository.Notification{ID: "n-1", UserID: "user-1", Title: "t", Data: data}))
	data["booking_id"] = "changed"

	got := repo.ListByUserID(ctx, "user-1")
	require.Len(t, got, 1)
	assert.Equal(t, "b-1", got[0].Data["booking_id"])
	assert.Empty(t, repo.ListByUserID(ctx, "user-2"))
}

func TestNotificationRepository_SaveSameIDKeepsFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository()

	require.NoError(t, repo.Save(ctx, repository.Notification{ID: "n-1", UserID: "user-1", Title: "first"}))
	require.NoError(t, repo.Save(ctx, repository.Notification{ID: "n-1", UserID: "user-1", Title: "second"}))
	require.NoError(t, repo.Save(ctx, repository.Notification{ID: "n-2", UserID: "user-1", Title: "other"}))

	got := repo.ListByUserID(ctx, "user-1")
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Title)
	assert.Equal(t, "other", got[1].Title)
}
