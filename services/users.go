package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// bcryptCost is a variable so tests can lower it.
var bcryptCost = bcrypt.DefaultCost

type CreateUserInput struct {
	Email     string        `json:"email"`
	Password  string        `json:"password"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Role      database.Role `json:"role"`
	Avatar    string        `json:"avatar"`
}

// ProfileUpdate lists the fields a user may change on their own record.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Avatar    *string `json:"avatar"`
	Password  *string `json:"password"`
}

type UserService struct {
	repo Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewUserService(repo Repository, logger *zap.Logger) *UserService {
	return &UserService{
		repo: repo,
		log:  logger,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *UserService) List(ctx context.Context) ([]database.UserProfile, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]database.UserProfile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id string) (database.User, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return database.User{}, err
	}
	if idx := indexOfUser(users, id); idx >= 0 {
		return users[idx], nil
	}
	return database.User{}, notFound("user")
}

// FindByEmail matches case-insensitively.
func (s *UserService) FindByEmail(ctx context.Context, email string) (database.User, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return database.User{}, err
	}
	email = strings.TrimSpace(email)
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return database.User{}, notFound("user")
}

// Create validates in, hashes the password and appends the new user. Role
// defaults to employee; the avatar defaults to one generated from the name.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (database.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = cleanText(in.FirstName)
	in.LastName = cleanText(in.LastName)

	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return database.User{}, invalid("email, password, firstName and lastName are required")
	}
	if !strings.Contains(in.Email, "@") {
		return database.User{}, invalid("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return database.User{}, invalid("password must be at least %d characters", minPasswordLength)
	}
	if in.Role == "" {
		in.Role = database.RoleEmployee
	}
	if !in.Role.Valid() {
		return database.User{}, invalid("invalid role %q", in.Role)
	}

	users, err := s.repo.Users(ctx)
	if err != nil {
		return database.User{}, err
	}
	if emailTaken(users, in.Email, "") {
		return database.User{}, ErrUserExists
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return database.User{}, err
	}

	avatar := strings.TrimSpace(in.Avatar)
	if avatar == "" {
		avatar = avatarURL(in.FirstName, in.LastName)
	}

	now := s.now()
	user := database.User{
		ID:            newID(),
		Email:         in.Email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		PasswordHash:  hash,
		Role:          in.Role,
		Avatar:        avatar,
		Notifications: []database.Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	users = append(users, user)
	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return database.User{}, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (database.UserProfile, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return database.UserProfile{}, err
	}
	idx := indexOfUser(users, id)
	if idx < 0 {
		return database.UserProfile{}, notFound("user")
	}
	u := users[idx]

	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if !strings.Contains(email, "@") {
			return database.UserProfile{}, invalid("invalid email address")
		}
		if emailTaken(users, email, id) {
			return database.UserProfile{}, ErrUserExists
		}
		u.Email = email
	}
	if in.FirstName != nil {
		if u.FirstName = cleanText(*in.FirstName); u.FirstName == "" {
			return database.UserProfile{}, invalid("firstName cannot be empty")
		}
	}
	if in.LastName != nil {
		if u.LastName = cleanText(*in.LastName); u.LastName == "" {
			return database.UserProfile{}, invalid("lastName cannot be empty")
		}
	}
	if in.Avatar != nil {
		u.Avatar = strings.TrimSpace(*in.Avatar)
		if u.Avatar == "" {
			u.Avatar = avatarURL(u.FirstName, u.LastName)
		}
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLength {
			return database.UserProfile{}, invalid("password must be at least %d characters", minPasswordLength)
		}
		if u.PasswordHash, err = hashPassword(*in.Password); err != nil {
			return database.UserProfile{}, err
		}
	}
	u.UpdatedAt = s.now()

	users[idx] = u
	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return database.UserProfile{}, err
	}
	return u.Profile(), nil
}

// Delete removes a user. Admins cannot delete their own account.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.ID == id {
		return invalid("you cannot delete your own account")
	}

	users, err := s.repo.Users(ctx)
	if err != nil {
		return err
	}
	idx := indexOfUser(users, id)
	if idx < 0 {
		return notFound("user")
	}
	users = append(users[:idx], users[idx+1:]...)
	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return err
	}

	s.log.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// ensureUsersExist rejects ids that do not belong to a stored user.
func ensureUsersExist(users map[string]database.User, ids []string) error {
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return invalid("unknown user id: %s", id)
		}
	}
	return nil
}

func emailTaken(users []database.User, email, exceptID string) bool {
	for _, u := range users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
