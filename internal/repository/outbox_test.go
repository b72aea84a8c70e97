package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIGOpenSource/Collide-sub009/internal/model"
	"github.com/GIGOpenSource/Collide-sub009/internal/testutil"
)

func TestOutboxLifecycle(t *testing.T) {
	s := NewStore(testutil.NewDB(t))
	ctx := context.Background()
	repo := s.Outbox()

	require.NoError(t, repo.Add(ctx, "blindbox_events_opened", "1", map[string]uint64{"box_item_id": 1}))
	require.NoError(t, repo.Add(ctx, "blindbox_events_opened", "2", map[string]uint64{"box_item_id": 2}))

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.JSONEq(t, `{"box_item_id":1}`, string(pending[0].Payload))

	require.NoError(t, repo.MarkSent(ctx, pending[0].ID))

	// 第二条投递失败两次后置为 FAILED
	require.NoError(t, repo.MarkAttemptFailed(ctx, pending[1].ID, "broker down", 2))
	left, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, 1, left[0].AttemptCount)

	require.NoError(t, repo.MarkAttemptFailed(ctx, pending[1].ID, "broker down", 2))
	left, err = repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestStoreTransactionRollback(t *testing.T) {
	s := NewStore(testutil.NewDB(t))
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.Outbox().Add(ctx, "t", "k", map[string]int{"a": 1}))
		return ErrConflict
	})
	assert.ErrorIs(t, err, ErrConflict)

	pending, err := s.Outbox().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var count int64
	s.DB().Model(&model.OutboxMessage{}).Count(&count)
	assert.Zero(t, count)
}
