package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/storage"
)

var _ storage.MessageRepository = (*MessageStore)(nil)

func newTestStore(t *testing.T) *MessageStore {
	t.Helper()
	store, err := NewMessageStore(domain.SeedMessages(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	return store
}

func ids(messages []domain.Message) []int64 {
	out := make([]int64, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}

func TestMessageStore_Scenario(t *testing.T) {
	store, err := NewMessageStore([]domain.Message{
		{ID: 1, SenderName: "Amelia", Subject: "Hi", Category: domain.CategoryPrimary, IsNew: true},
	})
	require.NoError(t, err)

	// markRead
	assert.True(t, store.MarkRead(1))
	msg, ok := store.Get(1)
	require.True(t, ok)
	assert.True(t, msg.Read)
	assert.False(t, msg.IsNew)

	// toggleStar 两次
	assert.True(t, store.ToggleStar(1))
	msg, _ = store.Get(1)
	assert.True(t, msg.Starred)

	assert.True(t, store.ToggleStar(1))
	msg, _ = store.Get(1)
	assert.False(t, msg.Starred)

	// archive 不删除记录
	assert.True(t, store.Archive(1))
	msg, ok = store.Get(1)
	require.True(t, ok)
	assert.True(t, msg.Archived)
	assert.Equal(t, 1, store.Len())

	// delete
	assert.True(t, store.Delete(1))
	assert.Empty(t, store.Snapshot())
}

func TestMessageStore_UnknownIDIsNoop(t *testing.T) {
	store := newTestStore(t)
	before := store.Snapshot()

	read := true
	matched, err := store.Update(999, domain.MessagePatch{Read: &read})
	require.NoError(t, err)
	assert.False(t, matched)

	assert.False(t, store.Delete(999))
	assert.False(t, store.Archive(999))
	assert.False(t, store.MarkRead(999))
	assert.False(t, store.ToggleStar(999))

	assert.Equal(t, before, store.Snapshot())
}

func TestMessageStore_Update(t *testing.T) {
	store := newTestStore(t)
	before := store.Snapshot()

	t.Run("合并部分字段并保持顺序", func(t *testing.T) {
		subject := "Moved to Thursday"
		matched, err := store.Update(1, domain.MessagePatch{Subject: &subject})
		require.NoError(t, err)
		assert.True(t, matched)

		after := store.Snapshot()
		assert.Equal(t, ids(before), ids(after))
		assert.Equal(t, "Moved to Thursday", after[0].Subject)
		assert.Equal(t, before[0].SenderName, after[0].SenderName)
		assert.Equal(t, before[0].IsNew, after[0].IsNew)
		assert.Equal(t, before[1:], after[1:])
	})

	t.Run("非法分类被拒绝且不修改集合", func(t *testing.T) {
		snapshot := store.Snapshot()
		bad := domain.Category("updates")

		matched, err := store.Update(1, domain.MessagePatch{Category: &bad})
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
		assert.False(t, matched)
		assert.Equal(t, snapshot, store.Snapshot())
	})

	t.Run("通过 update 设置已读同样清除 isNew", func(t *testing.T) {
		read := true
		_, err := store.Update(2, domain.MessagePatch{Read: &read})
		require.NoError(t, err)

		msg, _ := store.Get(2)
		assert.True(t, msg.Read)
		assert.False(t, msg.IsNew)
	})
}

func TestMessageStore_MarkReadRegardlessOfPriorState(t *testing.T) {
	store := newTestStore(t)

	for _, m := range store.Snapshot() {
		assert.True(t, store.MarkRead(m.ID))
		got, _ := store.Get(m.ID)
		assert.True(t, got.Read)
		assert.False(t, got.IsNew)
	}
}

func TestMessageStore_ToggleStarInvolution(t *testing.T) {
	store := newTestStore(t)

	for _, m := range store.Snapshot() {
		store.ToggleStar(m.ID)
		store.ToggleStar(m.ID)
		got, _ := store.Get(m.ID)
		assert.Equal(t, m.Starred, got.Starred)
	}
}

func TestMessageStore_Delete(t *testing.T) {
	store := newTestStore(t)
	before := store.Snapshot()

	assert.True(t, store.Delete(3))

	after := store.Snapshot()
	assert.Len(t, after, len(before)-1)

	expected := make([]int64, 0, len(before)-1)
	for _, id := range ids(before) {
		if id != 3 {
			expected = append(expected, id)
		}
	}
	assert.Equal(t, expected, ids(after))

	_, ok := store.Get(3)
	assert.False(t, ok)
}

func TestMessageStore_DeleteRemovesEveryMatch(t *testing.T) {
	store, err := NewMessageStore([]domain.Message{
		{ID: 1, Category: domain.CategoryPrimary},
		{ID: 2, Category: domain.CategorySocial},
		{ID: 1, Category: domain.CategoryPromotions},
	})
	require.NoError(t, err)

	assert.True(t, store.Delete(1))
	assert.Equal(t, []int64{2}, ids(store.Snapshot()))
	assert.False(t, store.Delete(1))
}

func TestMessageStore_Replace(t *testing.T) {
	store := newTestStore(t)

	t.Run("整体替换", func(t *testing.T) {
		next := []domain.Message{
			{ID: 10, Category: domain.CategorySocial},
			{ID: 11, Category: domain.CategoryPromotions},
		}
		require.NoError(t, store.Replace(next))
		assert.Equal(t, []int64{10, 11}, ids(store.Snapshot()))

		next[0].Subject = "changed by caller"
		got, _ := store.Get(10)
		assert.Empty(t, got.Subject)
	})

	t.Run("非法分类不修改集合", func(t *testing.T) {
		err := store.Replace([]domain.Message{{ID: 20, Category: "junk"}})
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
		assert.Equal(t, []int64{10, 11}, ids(store.Snapshot()))
	})

	t.Run("已读邮件不能标记为新邮件", func(t *testing.T) {
		err := store.Replace([]domain.Message{{ID: 21, Category: domain.CategoryPrimary, Read: true, IsNew: true}})
		assert.ErrorIs(t, err, domain.ErrInvalidPatch)
		assert.Equal(t, []int64{10, 11}, ids(store.Snapshot()))
	})

	t.Run("发件人邮箱格式错误", func(t *testing.T) {
		err := store.Replace([]domain.Message{
			{ID: 22, Category: domain.CategoryPrimary},
			{ID: 23, Category: domain.CategoryPrimary, SenderEmail: "not-an-address"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
		assert.Equal(t, []int64{10, 11}, ids(store.Snapshot()))
	})

	t.Run("清空集合", func(t *testing.T) {
		require.NoError(t, store.Replace(nil))
		assert.Equal(t, 0, store.Len())
	})
}

func TestMessageStore_SnapshotIsolation(t *testing.T) {
	store := newTestStore(t)

	snapshot := store.Snapshot()
	snapshot[0].Subject = "mutated"

	got, _ := store.Get(snapshot[0].ID)
	assert.NotEqual(t, "mutated", got.Subject)

	store.MarkRead(1)
	assert.False(t, snapshot[0].Read)
}

func TestMessageStore_CategoryAlwaysValid(t *testing.T) {
	store := newTestStore(t)
	bad := domain.Category("")

	store.MarkRead(1)
	store.ToggleStar(2)
	store.Archive(3)
	_, _ = store.Update(4, domain.MessagePatch{Category: &bad})
	store.Delete(5)

	for _, m := range store.Snapshot() {
		assert.True(t, m.Category.Valid(), "message %d", m.ID)
	}
}
