package services

import (
	"testing"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_PushStoresAndDelivers(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", "a@x.com", database.RoleEmployee)

	n, err := env.notifications.Push(env.ctx, "u1", database.Notification{
		Type:    database.NotifyTaskUpdated,
		Title:   "Task updated",
		Message: "something changed",
		Read:    true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)
	assert.False(t, n.Timestamp.IsZero())

	u := env.user("u1")
	require.Len(t, u.Notifications, 1)
	assert.Equal(t, n.ID, u.Notifications[0].ID)
	assert.Equal(t, 1, u.Profile().UnreadCount)
	assert.Equal(t, 1, env.notifier.count("u1"))

	_, err = env.notifications.Push(env.ctx, "ghost", database.Notification{Type: database.NotifyTaskUpdated})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationService_ListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", "a@x.com", database.RoleEmployee)

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Hour)
		env.notifications.now = func() time.Time { return at }
		_, err := env.notifications.Push(env.ctx, "u1", database.Notification{Type: database.NotifyTaskComment, Title: title})
		require.NoError(t, err)
	}

	list, err := env.notifications.List(env.ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	assert.Equal(t, "first", list[2].Title)
}

func TestNotificationService_MarkRead(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", "a@x.com", database.RoleEmployee)
	env.addUser("u2", "b@x.com", database.RoleEmployee)

	n, err := env.notifications.Push(env.ctx, "u1", database.Notification{Type: database.NotifyTaskStatus})
	require.NoError(t, err)

	// Another user's notification id is unknown to u2.
	_, err = env.notifications.MarkRead(env.ctx, "u2", n.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := env.notifications.MarkRead(env.ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.Equal(t, 0, env.user("u1").Profile().UnreadCount)

	got, err = env.notifications.MarkRead(env.ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", "a@x.com", database.RoleEmployee)

	for i := 0; i < 3; i++ {
		_, err := env.notifications.Push(env.ctx, "u1", database.Notification{Type: database.NotifyTaskAssigned})
		require.NoError(t, err)
	}

	changed, err := env.notifications.MarkAllRead(env.ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	for _, n := range env.user("u1").Notifications {
		assert.True(t, n.Read)
	}

	changed, err = env.notifications.MarkAllRead(env.ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestNotificationService_PushAllSkipsMissingUsers(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", "a@x.com", database.RoleEmployee)
	env.addUser("u3", "c@x.com", database.RoleEmployee)

	delivered := env.notifications.pushAll(env.ctx, []string{"u1", "gone", "u3"}, database.Notification{Type: database.NotifyTaskAssigned})
	assert.Equal(t, 2, delivered)
	assert.Len(t, env.user("u1").Notifications, 1)
	assert.Len(t, env.user("u3").Notifications, 1)
}
