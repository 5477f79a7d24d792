package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/CrowderSoup/taskpulse/services"
	"go.uber.org/zap"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         logger,
	}
}

type sessionResponse struct {
	Token string               `json:"token"`
	User  database.UserProfile `json:"user"`
}

// Login exchanges email and password for a JWT
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// Register creates an employee account and returns a session for it
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.authService.Register(r.Context(), services.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

// VerifyToken checks if a JWT token is valid
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tokenString, err := bearerToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	user, err := h.authService.Authenticate(r.Context(), tokenString)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "valid",
		"user":   user.Profile(),
	})
}
