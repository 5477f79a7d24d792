package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent map[string][]WebSocketMessage
}

func (n *recordingNotifier) SendToUser(userID string, msg WebSocketMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[string][]WebSocketMessage)
	}
	n.sent[userID] = append(n.sent[userID], msg)
}

func (n *recordingNotifier) count(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[userID])
}

type testEnv struct {
	t             *testing.T
	ctx           context.Context
	store         *database.Store
	notifier      *recordingNotifier
	users         *UserService
	auth          *AuthService
	notifications *NotificationService
	tasks         *TaskService
	projects      *ProjectService
	clients       *ClientService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	store := database.NewStore(database.NewMemoryBackend())
	notifier := &recordingNotifier{}
	users := NewUserService(store, logger)
	notifications := NewNotificationService(store, notifier, logger)

	return &testEnv{
		t:             t,
		ctx:           context.Background(),
		store:         store,
		notifier:      notifier,
		users:         users,
		auth:          NewAuthService(users, "test-secret", time.Hour, logger),
		notifications: notifications,
		tasks:         NewTaskService(store, notifications, logger),
		projects:      NewProjectService(store, notifications, logger),
		clients:       NewClientService(store, logger),
	}
}

// addUser stores a user with a fixed id and the password "password1".
func (e *testEnv) addUser(id, email string, role database.Role) Actor {
	e.t.Helper()

	hash, err := hashPassword("password1")
	require.NoError(e.t, err)

	users, err := e.store.Users(e.ctx)
	require.NoError(e.t, err)

	u := database.User{
		ID:           id,
		Email:        email,
		FirstName:    "User",
		LastName:     id,
		PasswordHash: hash,
		Role:         role,
	}
	users = append(users, u)
	require.NoError(e.t, e.store.SaveUsers(e.ctx, users))
	return ActorFrom(u)
}

func (e *testEnv) user(id string) database.User {
	e.t.Helper()
	u, err := e.users.Get(e.ctx, id)
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) createTask(actor Actor, title string) TaskView {
	e.t.Helper()
	v, err := e.tasks.Create(e.ctx, actor, CreateTaskInput{
		Title:       title,
		Description: "description of " + title,
		DueDate:     "2025-01-01",
	})
	require.NoError(e.t, err)
	return v
}

func ptr[T any](v T) *T { return &v }
