package database

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleTeamLead Role = "team-lead"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeamLead, RoleEmployee:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskDraft       TaskStatus = "draft"
	TaskInProgress  TaskStatus = "in-progress"
	TaskUnderReview TaskStatus = "under-review"
	TaskCompleted   TaskStatus = "completed"
	TaskCanceled    TaskStatus = "canceled"
)

// TaskStatuses lists the kanban columns in board order.
var TaskStatuses = []TaskStatus{TaskDraft, TaskInProgress, TaskUnderReview, TaskCompleted, TaskCanceled}

func (s TaskStatus) Valid() bool {
	for _, v := range TaskStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Closed reports whether the task has left the active workflow.
func (s TaskStatus) Closed() bool {
	return s == TaskCompleted || s == TaskCanceled
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on-hold"
)

func (s ProjectStatus) Valid() bool {
	return s == ProjectActive || s == ProjectCompleted || s == ProjectOnHold
}

type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

func (s ClientStatus) Valid() bool {
	return s == ClientActive || s == ClientInactive
}

// User is the stored user record. PasswordHash never leaves the server;
// responses use UserProfile.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	FirstName     string         `json:"firstName"`
	LastName      string         `json:"lastName"`
	PasswordHash  string         `json:"passwordHash"`
	Role          Role           `json:"role"`
	Avatar        string         `json:"avatar"`
	Notifications []Notification `json:"notifications"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	Role        Role      `json:"role"`
	Avatar      string    `json:"avatar"`
	UnreadCount int       `json:"unreadCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u User) Profile() UserProfile {
	unread := 0
	for _, n := range u.Notifications {
		if !n.Read {
			unread++
		}
	}
	return UserProfile{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Avatar:      u.Avatar,
		UnreadCount: unread,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// Assignee is the read-time summary of a user linked to a task or project.
type Assignee struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar"`
}

func (u User) Assignee() Assignee {
	return Assignee{ID: u.ID, Name: u.FullName(), Email: u.Email, Role: u.Role, Avatar: u.Avatar}
}

type NotificationType string

const (
	NotifyTaskAssigned    NotificationType = "task-assigned"
	NotifyProjectAssigned NotificationType = "project-assigned"
	NotifyTaskUpdated     NotificationType = "task-updated"
	NotifyTaskComment     NotificationType = "task-comment"
	NotifyTaskStatus      NotificationType = "task-status"
)

type Notification struct {
	ID         string           `json:"id"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Timestamp  time.Time        `json:"timestamp"`
	Read       bool             `json:"read"`
	TaskID     string           `json:"taskId,omitempty"`
	ProjectID  string           `json:"projectId,omitempty"`
	EntityID   string           `json:"entityId,omitempty"`
	EntityType string           `json:"entityType,omitempty"`
}

type Client struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ContactName string       `json:"contactName"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	Description string       `json:"description"`
	Status      ClientStatus `json:"status"`
	Links       []string     `json:"links"`
	CreatedBy   string       `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Status          ProjectStatus `json:"status"`
	StartDate       string        `json:"startDate"`
	EndDate         string        `json:"endDate"`
	ClientID        string        `json:"clientId"`
	CreatedBy       string        `json:"createdBy"`
	AssignedUserIDs []string      `json:"assignedUserIds"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

type SubTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type EditEntry struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	Changes   string    `json:"changes"`
}

type Task struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      TaskStatus  `json:"status"`
	DueDate     string      `json:"dueDate"`
	CreatedBy   string      `json:"createdBy"`
	ClientID    string      `json:"clientId"`
	ProjectID   string      `json:"projectId"`
	AssigneeIDs []string    `json:"assigneeIds"`
	SubTasks    []SubTask   `json:"subTasks"`
	Comments    []Comment   `json:"comments"`
	Attachments []string    `json:"attachments"`
	EditHistory []EditEntry `json:"editHistory"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// HasAssignee reports whether userID is already on the task.
func (t Task) HasAssignee(userID string) bool {
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (p Project) HasAssignee(userID string) bool {
	for _, id := range p.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
