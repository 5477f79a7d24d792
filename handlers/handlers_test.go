package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t         *testing.T
	router    *mux.Router
	store     *database.Store
	auth      *services.AuthService
	users     *services.UserService
	hub       *services.Hub
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zap.NewNop()
	store := database.NewStore(database.NewMemoryBackend())
	hub := services.NewHub(logger)
	users := services.NewUserService(store, logger)
	notifications := services.NewNotificationService(store, hub, logger)
	auth := services.NewAuthService(users, "handler-test-secret", time.Hour, logger)
	uploadDir := t.TempDir()

	router, err := NewRouter(Deps{
		Auth:           auth,
		Users:          users,
		Tasks:          services.NewTaskService(store, notifications, logger),
		Projects:       services.NewProjectService(store, notifications, logger),
		Clients:        services.NewClientService(store, logger),
		Notifications:  notifications,
		Hub:            hub,
		Store:          store,
		Limiter:        NewIPRateLimiter(600, 100, false, logger),
		Logger:         logger,
		UploadDir:      uploadDir,
		MaxUploadBytes: 1024,
	})
	require.NoError(t, err)

	return &testServer{t: t, router: router, store: store, auth: auth, users: users, hub: hub, uploadDir: uploadDir}
}

// runHub starts the hub until the test ends. Only websocket tests need it.
func (s *testServer) runHub() {
	ctx, cancel := context.WithCancel(context.Background())
	s.t.Cleanup(cancel)
	go s.hub.Run(ctx)
}

// addUser creates a user and returns its id and a bearer token for it.
func (s *testServer) addUser(email string, role database.Role) (string, string) {
	s.t.Helper()
	u, err := s.users.Create(context.Background(), services.CreateUserInput{
		Email:     email,
		Password:  "password1",
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
	})
	require.NoError(s.t, err)
	token, err := s.auth.CreateJWT(u)
	require.NoError(s.t, err)
	return u.ID, token
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCreateTask(t *testing.T) {
	srv := newTestServer(t)
	userID, token := srv.addUser("one@x.com", database.RoleEmployee)

	rec := srv.do("POST", "/api/tasks", token, map[string]any{
		"title": "X", "description": "Y", "status": "draft", "dueDate": "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	task := decodeBody[services.TaskView](t, rec)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, userID, task.CreatedBy)
	assert.Equal(t, database.TaskDraft, task.Status)
	assert.Empty(t, task.Comments)
	assert.NotNil(t, task.Comments)

	list := srv.do("GET", "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decodeBody[[]services.TaskView](t, list), 1)
}

func TestCreateTaskValidation(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.addUser("one@x.com", database.RoleEmployee)

	rec := srv.do("POST", "/api/tasks", token, map[string]any{"title": "only a title"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "all fields required: title, description and dueDate", decodeBody[errorResponse](t, rec).Message)

	rec = srv.do("POST", "/api/tasks", token, map[string]any{
		"title": "X", "description": "Y", "dueDate": "2025-01-01", "priority": "high",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do("POST", "/api/tasks", token, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do("GET", "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do("GET", "/api/tasks", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decodeBody[errorResponse](t, rec).Message)
}

func TestDeleteTaskTwice(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.addUser("one@x.com", database.RoleEmployee)

	created := decodeBody[services.TaskView](t, srv.do("POST", "/api/tasks", token, map[string]any{
		"title": "X", "description": "Y", "dueDate": "2025-01-01",
	}))

	rec := srv.do("DELETE", "/api/tasks/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do("DELETE", "/api/tasks/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "task not found", decodeBody[errorResponse](t, rec).Message)

	rec = srv.do("GET", "/api/tasks/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignTaskNotifies(t *testing.T) {
	srv := newTestServer(t)
	_, creatorToken := srv.addUser("one@x.com", database.RoleEmployee)
	u2, u2Token := srv.addUser("two@x.com", database.RoleEmployee)

	task := decodeBody[services.TaskView](t, srv.do("POST", "/api/tasks", creatorToken, map[string]any{
		"title": "t1", "description": "d", "dueDate": "2025-01-01",
	}))

	rec := srv.do("POST", "/api/tasks/"+task.ID+"/assign", creatorToken, map[string]any{"userIds": []string{u2}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assigned := decodeBody[services.TaskView](t, rec)
	require.Len(t, assigned.Assignees, 1)
	assert.Equal(t, u2, assigned.Assignees[0].ID)

	rec = srv.do("GET", "/api/notifications", u2Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decodeBody[[]database.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, task.ID, notes[0].TaskID)
	assert.False(t, notes[0].Read)

	rec = srv.do("POST", "/api/notifications/read/"+notes[0].ID, u2Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[database.UserProfile](t, srv.do("GET", "/api/user", u2Token, nil))
	assert.Zero(t, profile.UnreadCount)

	rec = srv.do("POST", "/api/notifications/read/unknown", u2Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMoveTaskForbiddenForOthers(t *testing.T) {
	srv := newTestServer(t)
	_, creatorToken := srv.addUser("one@x.com", database.RoleEmployee)
	_, otherToken := srv.addUser("two@x.com", database.RoleEmployee)

	task := decodeBody[services.TaskView](t, srv.do("POST", "/api/tasks", creatorToken, map[string]any{
		"title": "t1", "description": "d", "dueDate": "2025-01-01",
	}))

	rec := srv.do("PATCH", "/api/tasks/"+task.ID+"/status", otherToken, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do("PATCH", "/api/tasks/"+task.ID+"/status", creatorToken, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, database.TaskCompleted, decodeBody[services.TaskView](t, rec).Status)
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	srv.addUser("A@x.com", database.RoleEmployee)

	rec := srv.do("POST", "/api/auth/login", "", map[string]string{"email": "a@X.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	session := decodeBody[sessionResponse](t, rec)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "A@x.com", session.User.Email)

	rec = srv.do("GET", "/api/auth/verify", session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	wrong := srv.do("POST", "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "nope"})
	unknown := srv.do("POST", "/api/auth/login", "", map[string]string{"email": "who@x.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]string{
		"email": "new@x.com", "password": "secret1", "firstName": "New", "lastName": "User",
	}

	rec := srv.do("POST", "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decodeBody[sessionResponse](t, rec)
	assert.Equal(t, database.RoleEmployee, session.User.Role)
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = srv.do("POST", "/api/auth/register", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user already exists", decodeBody[errorResponse](t, rec).Message)

	// Role can't be smuggled in through registration.
	rec = srv.do("POST", "/api/auth/register", "", map[string]string{
		"email": "x@x.com", "password": "secret1", "firstName": "X", "lastName": "Y", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1, false, zap.NewNop())
	h := limiter.Limit(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	call := func() int {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:4242"
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, call())
	assert.Equal(t, http.StatusTooManyRequests, call())

	// A forged forwarding header doesn't buy a fresh bucket.
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:4243"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Another client is unaffected.
	req = httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "203.0.113.9:4242", nil, false, "203.0.113.9"},
		{"remote addr without port", "203.0.113.9", nil, false, "203.0.113.9"},
		{"forwarded for ignored", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.1"}, false, "10.0.0.1"},
		{"real ip ignored", "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.2"}, false, "10.0.0.1"},
		{"forwarded for trusted", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, true, "198.51.100.1"},
		{"real ip trusted", "10.0.0.1:80", map[string]string{"X-Real-IP": "198.51.100.2"}, true, "198.51.100.2"},
		{"trusted without headers", "10.0.0.1:80", nil, true, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.trustProxy))
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	srv := newTestServer(t)
	adminID, adminToken := srv.addUser("admin@x.com", database.RoleAdmin)
	employeeID, employeeToken := srv.addUser("emp@x.com", database.RoleEmployee)

	rec := srv.do("GET", "/api/admin/users", employeeToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do("GET", "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]database.UserProfile](t, rec), 2)

	rec = srv.do("POST", "/api/admin/users", adminToken, map[string]string{
		"email": "lead@x.com", "password": "secret1", "firstName": "Lead", "lastName": "Person", "role": "team-lead",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, database.RoleTeamLead, decodeBody[database.UserProfile](t, rec).Role)

	rec = srv.do("DELETE", "/api/admin/users/"+adminID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do("DELETE", "/api/admin/users/"+employeeID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The deleted user's token stops working.
	rec = srv.do("GET", "/api/tasks", employeeToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	client := decodeBody[database.Client](t, srv.do("POST", "/api/admin/clients", adminToken, map[string]string{
		"name": "Acme", "email": "hi@acme.test",
	}))
	rec = srv.do("DELETE", "/api/admin/clients/"+client.ID, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do("GET", "/api/clients/"+client.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectsAndViews(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.addUser("lead@x.com", database.RoleTeamLead)

	client := decodeBody[database.Client](t, srv.do("POST", "/api/clients", token, map[string]string{
		"name": "Acme", "email": "hi@acme.test",
	}))
	rec := srv.do("POST", "/api/projects", token, map[string]any{
		"name": "Site", "clientId": client.ID, "startDate": "2025-03-01", "endDate": "2025-04-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	project := decodeBody[services.ProjectView](t, rec)

	srv.do("POST", "/api/tasks", token, map[string]any{
		"title": "t", "description": "d", "dueDate": "2025-03-15", "projectId": project.ID, "clientId": client.ID,
	})

	rec = srv.do("GET", "/api/enhanced-tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	enhanced := decodeBody[[]services.EnhancedTask](t, rec)
	require.Len(t, enhanced, 1)
	require.NotNil(t, enhanced[0].Project)
	assert.Equal(t, "Site", enhanced[0].Project.Name)

	rec = srv.do("GET", "/api/analytics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[services.Analytics](t, rec).Total)

	rec = srv.do("GET", "/api/calendar?from=2025-03-10&to=2025-04-30", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]services.CalendarEvent](t, rec), 2)

	rec = srv.do("GET", "/api/calendar?from=2025-05-01&to=2025-04-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do("PUT", "/api/projects/"+project.ID, token, map[string]any{"status": "on-hold"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, database.ProjectOnHold, decodeBody[services.ProjectView](t, rec).Status)
}

func TestUpload(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.addUser("one@x.com", database.RoleEmployee)

	upload := func(name string, content []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", "/api/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("../../My Report.pdf", []byte("hello"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody[uploadResponse](t, rec)
	assert.Regexp(t, `^[0-9a-f]{8}-My-Report\.pdf$`, got.Filename)
	assert.Equal(t, "/uploads/"+got.Filename, got.Path)
	assert.EqualValues(t, 5, got.Size)

	stored, err := os.ReadFile(filepath.Join(srv.uploadDir, got.Filename))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(stored))

	rec = srv.do("GET", got.Path, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "attachment", rec.Header().Get("Content-Disposition"))

	rec = upload("page.html", []byte("<script>alert(1)</script>"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = srv.do("GET", decodeBody[uploadResponse](t, rec).Path, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox")

	rec = upload("big.bin", bytes.Repeat([]byte("x"), 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, rec)["status"])
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\cv.docx`: "cv.docx",
		"my photo (1).png":    "my-photo-1-.png",
		"...":                 "file",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.addUser("one@x.com", database.RoleEmployee)

	task := decodeBody[services.TaskView](t, srv.do("POST", "/api/tasks", token, map[string]any{
		"title": "t", "description": "d", "dueDate": "2025-01-01",
	}))

	tests := []struct {
		method string
		path   string
		body   map[string]any
	}{
		{"POST", "/api/tasks", map[string]any{"title": "t", "description": "d", "dueDate": "2025-01-01", "createdBy": "someone"}},
		{"PUT", "/api/tasks/" + task.ID, map[string]any{"title": "t2", "id": "other"}},
		{"PATCH", "/api/tasks/" + task.ID + "/status", map[string]any{"status": "completed", "force": true}},
		{"POST", "/api/tasks/" + task.ID + "/comments", map[string]any{"text": "hi", "author": "x"}},
		{"POST", "/api/projects", map[string]any{"name": "p", "budget": 10}},
		{"POST", "/api/clients", map[string]any{"name": "c", "email": "c@x.com", "vip": true}},
		{"PUT", "/api/profile", map[string]any{"firstName": "A", "role": "admin"}},
		{"POST", "/api/auth/login", map[string]any{"email": "one@x.com", "password": "password1", "remember": true}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := srv.do(tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decodeBody[errorResponse](t, rec).Message, "unknown field")
		})
	}

	// Nothing above touched the task.
	rec := srv.do("GET", "/api/tasks/"+task.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[services.TaskView](t, rec)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, database.TaskDraft, got.Status)
	assert.Empty(t, got.Comments)
}

func TestUpdateProfile(t *testing.T) {
	srv := newTestServer(t)
	_, token := srv.addUser("one@x.com", database.RoleEmployee)
	srv.addUser("two@x.com", database.RoleEmployee)

	rec := srv.do("PUT", "/api/profile", token, map[string]any{"firstName": "Ada", "lastName": "Lovelace"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decodeBody[database.UserProfile](t, rec)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, "Lovelace", profile.LastName)
	assert.Equal(t, database.RoleEmployee, profile.Role)

	rec = srv.do("GET", "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decodeBody[database.UserProfile](t, rec).FirstName)

	rec = srv.do("PUT", "/api/profile", token, map[string]any{"email": "TWO@x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user already exists", decodeBody[errorResponse](t, rec).Message)

	rec = srv.do("PUT", "/api/profile", token, map[string]any{"email": "uno@x.com", "password": "newpass1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do("POST", "/api/auth/login", "", map[string]string{"email": "uno@x.com", "password": "newpass1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do("POST", "/api/auth/login", "", map[string]string{"email": "one@x.com", "password": "password1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do("PUT", "/api/profile", "", map[string]any{"firstName": "X"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebSocketTokenQuery(t *testing.T) {
	srv := newTestServer(t)
	srv.runHub()
	userID, token := srv.addUser("one@x.com", database.RoleEmployee)

	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// The query token is only honoured on the websocket path.
	rec := srv.do("GET", "/api/tasks?token="+token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	read := func() services.WebSocketMessage {
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err)
		var msg services.WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	}

	// The pong proves the connection is registered with the hub.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, "pong", read().Type)

	srv.hub.SendToUser(userID, services.WebSocketMessage{Type: "notification", Data: "assigned"})
	msg := read()
	assert.Equal(t, "notification", msg.Type)
	assert.Equal(t, "assigned", msg.Data)
}
