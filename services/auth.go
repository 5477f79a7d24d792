package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultJWTSecret = "taskpulse-default-secret-change-in-production"
	DefaultTokenTTL  = 7 * 24 * time.Hour
)

// Claims is the JWT payload. Subject holds the user id.
type Claims struct {
	Email string        `json:"email"`
	Role  database.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users     *UserService
	jwtSecret []byte
	tokenTTL  time.Duration
	log       *zap.Logger
}

func NewAuthService(users *UserService, secret string, ttl time.Duration, logger *zap.Logger) *AuthService {
	if secret == "" {
		logger.Warn("auth.jwt_secret not set, using the built-in default secret")
		secret = DefaultJWTSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &AuthService{
		users:     users,
		jwtSecret: []byte(secret),
		tokenTTL:  ttl,
		log:       logger,
	}
}

// Login checks credentials. Unknown emails and wrong passwords both yield
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, database.UserProfile, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		LoginAttempts.WithLabelValues("failure").Inc()
		return "", database.UserProfile{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", database.UserProfile{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		LoginAttempts.WithLabelValues("failure").Inc()
		return "", database.UserProfile{}, ErrInvalidCredentials
	}

	token, err := s.CreateJWT(user)
	if err != nil {
		return "", database.UserProfile{}, err
	}
	LoginAttempts.WithLabelValues("success").Inc()
	return token, user.Profile(), nil
}

// Register creates an employee account and signs it in.
func (s *AuthService) Register(ctx context.Context, in CreateUserInput) (string, database.UserProfile, error) {
	in.Role = database.RoleEmployee
	user, err := s.users.Create(ctx, in)
	if err != nil {
		return "", database.UserProfile{}, err
	}

	token, err := s.CreateJWT(user)
	if err != nil {
		return "", database.UserProfile{}, err
	}
	return token, user.Profile(), nil
}

// CreateJWT generates a JWT token for a user
func (s *AuthService) CreateJWT(user database.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyJWT verifies a JWT token and returns the user id it was issued for
func (s *AuthService) VerifyJWT(tokenString string) (string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim missing")
	}
	return claims.Subject, nil
}

// Authenticate resolves a token to the stored user. Tokens of deleted users
// are rejected.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (database.User, error) {
	userID, err := s.VerifyJWT(tokenString)
	if err != nil {
		return database.User{}, err
	}
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return database.User{}, errors.New("token user no longer exists")
	}
	return user, err
}
