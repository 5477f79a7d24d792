package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs from the rest of the program.
type Deps struct {
	Auth          *services.AuthService
	Users         *services.UserService
	Tasks         *services.TaskService
	Projects      *services.ProjectService
	Clients       *services.ClientService
	Notifications *services.NotificationService
	Hub           *services.Hub
	Store         Pinger
	Limiter       *IPRateLimiter
	Logger        *zap.Logger

	UploadDir      string
	MaxUploadBytes int64
	AllowedOrigins []string
	// StaticDir, when set, is served at / for the single page front end.
	StaticDir string
}

func NewRouter(d Deps) (*mux.Router, error) {
	log := d.Logger

	uploadHandler, err := NewUploadHandler(d.UploadDir, d.MaxUploadBytes, log)
	if err != nil {
		return nil, err
	}
	authMiddleware := NewAuthMiddleware(d.Auth, log)
	authHandler := NewAuthHandler(d.Auth, log)
	taskHandler := NewTaskHandler(d.Tasks, log)
	projectHandler := NewProjectHandler(d.Projects, log)
	clientHandler := NewClientHandler(d.Clients, log)
	userHandler := NewUserHandler(d.Users, log)
	notificationHandler := NewNotificationHandler(d.Notifications, log)
	wsHandler := NewWebSocketHandler(d.Hub, d.AllowedOrigins, log)
	healthHandler := NewHealthHandler(d.Store, log)

	r := mux.NewRouter()
	r.Use(RequestLogger(log))

	// Public routes
	r.HandleFunc("/api/auth/login", d.Limiter.Limit(authHandler.Login)).Methods("POST")
	r.HandleFunc("/api/auth/register", d.Limiter.Limit(authHandler.Register)).Methods("POST")
	r.HandleFunc("/api/auth/verify", authHandler.VerifyToken).Methods("GET")
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.PathPrefix("/uploads/").Handler(serveUploads(d.UploadDir)).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Auth)

	api.HandleFunc("/tasks", taskHandler.List).Methods("GET")
	api.HandleFunc("/tasks", taskHandler.Create).Methods("POST")
	api.HandleFunc("/tasks/{id}", taskHandler.Get).Methods("GET")
	api.HandleFunc("/tasks/{id}", taskHandler.Update).Methods("PUT")
	api.HandleFunc("/tasks/{id}", taskHandler.Delete).Methods("DELETE")
	api.HandleFunc("/tasks/{id}/status", taskHandler.Move).Methods("PATCH")
	api.HandleFunc("/tasks/{id}/assign", taskHandler.Assign).Methods("POST")
	api.HandleFunc("/tasks/{id}/comments", taskHandler.AddComment).Methods("POST")
	api.HandleFunc("/enhanced-tasks", taskHandler.Enhanced).Methods("GET")
	api.HandleFunc("/analytics", taskHandler.Analytics).Methods("GET")
	api.HandleFunc("/calendar", taskHandler.Calendar).Methods("GET")

	api.HandleFunc("/projects", projectHandler.List).Methods("GET")
	api.HandleFunc("/projects", projectHandler.Create).Methods("POST")
	api.HandleFunc("/projects/{id}", projectHandler.Get).Methods("GET")
	api.HandleFunc("/projects/{id}", projectHandler.Update).Methods("PUT")
	api.HandleFunc("/projects/{id}", projectHandler.Delete).Methods("DELETE")
	api.HandleFunc("/projects/{id}/assign", projectHandler.Assign).Methods("POST")

	api.HandleFunc("/clients", clientHandler.List).Methods("GET")
	api.HandleFunc("/clients", clientHandler.Create).Methods("POST")
	api.HandleFunc("/clients/{id}", clientHandler.Get).Methods("GET")
	api.HandleFunc("/clients/{id}", clientHandler.Update).Methods("PUT")

	api.HandleFunc("/profile", userHandler.Profile).Methods("GET")
	api.HandleFunc("/profile", userHandler.UpdateProfile).Methods("PUT")
	api.HandleFunc("/user", userHandler.Profile).Methods("GET")
	api.HandleFunc("/users", userHandler.List).Methods("GET")

	api.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	api.HandleFunc("/notifications/read-all", notificationHandler.MarkAllRead).Methods("POST")
	api.HandleFunc("/notifications/read/{id}", notificationHandler.MarkRead).Methods("POST")

	api.HandleFunc("/upload", uploadHandler.Upload).Methods("POST")

	// WebSocket route for notification push
	api.HandleFunc("/ws", wsHandler.HandleWebSocket).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware.RequireAdmin)

	admin.HandleFunc("/users", userHandler.List).Methods("GET")
	admin.HandleFunc("/users", userHandler.Create).Methods("POST")
	admin.HandleFunc("/users/{id}", userHandler.Delete).Methods("DELETE")
	admin.HandleFunc("/projects", projectHandler.List).Methods("GET")
	admin.HandleFunc("/projects", projectHandler.Create).Methods("POST")
	admin.HandleFunc("/projects/{id}", projectHandler.Delete).Methods("DELETE")
	admin.HandleFunc("/clients", clientHandler.List).Methods("GET")
	admin.HandleFunc("/clients", clientHandler.Create).Methods("POST")
	admin.HandleFunc("/clients/{id}", clientHandler.Delete).Methods("DELETE")

	// Static file server for the front end
	if d.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(d.StaticDir)))
	}

	return r, nil
}

// serveUploads serves stored files as downloads so uploaded HTML or SVG never
// renders on this origin.
func serveUploads(dir string) http.Handler {
	files := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Disposition", "attachment")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
		files.ServeHTTP(w, r)
	})
}
