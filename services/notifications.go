package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"go.uber.org/zap"
)

// Notifier delivers realtime messages to a user's open connections.
type Notifier interface {
	SendToUser(userID string, msg WebSocketMessage)
}

// NotificationService stores notifications on user records. Each Push is its
// own load/save of the users collection, so a fan-out to several users is not
// atomic and a concurrent write to users can drop a notification.
type NotificationService struct {
	repo     Repository
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewNotificationService wires the store and an optional realtime notifier.
func NewNotificationService(repo Repository, notifier Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:     repo,
		notifier: notifier,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Push appends n to the user's notifications, persists, then sends it over
// the notifier.
func (s *NotificationService) Push(ctx context.Context, userID string, n database.Notification) (database.Notification, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return database.Notification{}, err
	}

	idx := indexOfUser(users, userID)
	if idx < 0 {
		return database.Notification{}, notFound("user")
	}

	n.ID = newID()
	n.Timestamp = s.now()
	n.Read = false
	users[idx].Notifications = append(users[idx].Notifications, n)

	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return database.Notification{}, fmt.Errorf("failed to store notification: %w", err)
	}
	NotificationsPushed.WithLabelValues(string(n.Type)).Inc()

	if s.notifier != nil {
		s.notifier.SendToUser(userID, WebSocketMessage{Type: "notification", Data: n})
	}
	return n, nil
}

// pushAll fans n out to every user in userIDs. Failures are logged and do not
// stop the remaining deliveries.
func (s *NotificationService) pushAll(ctx context.Context, userIDs []string, n database.Notification) int {
	delivered := 0
	for _, id := range userIDs {
		if _, err := s.Push(ctx, id, n); err != nil {
			s.log.Warn("failed to push notification",
				zap.String("user_id", id),
				zap.String("type", string(n.Type)),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]database.Notification, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOfUser(users, userID)
	if idx < 0 {
		return nil, notFound("user")
	}

	out := append([]database.Notification{}, users[idx].Notifications...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (database.Notification, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return database.Notification{}, err
	}
	idx := indexOfUser(users, userID)
	if idx < 0 {
		return database.Notification{}, notFound("user")
	}

	for i := range users[idx].Notifications {
		n := &users[idx].Notifications[i]
		if n.ID != notificationID {
			continue
		}
		if n.Read {
			return *n, nil
		}
		n.Read = true
		if err := s.repo.SaveUsers(ctx, users); err != nil {
			return database.Notification{}, err
		}
		return *n, nil
	}
	return database.Notification{}, notFound("notification")
}

// MarkAllRead flags every notification read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return 0, err
	}
	idx := indexOfUser(users, userID)
	if idx < 0 {
		return 0, notFound("user")
	}

	changed := 0
	for i := range users[idx].Notifications {
		if !users[idx].Notifications[i].Read {
			users[idx].Notifications[i].Read = true
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return 0, err
	}
	return changed, nil
}

func indexOfUser(users []database.User, id string) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
