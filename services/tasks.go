package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"go.uber.org/zap"
)

// TaskView is a task with its assignee summaries resolved from the users
// collection.
type TaskView struct {
	database.Task
	Assignees []database.Assignee `json:"assignees"`
}

type CreateTaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      database.TaskStatus `json:"status"`
	DueDate     string              `json:"dueDate"`
	ClientID    string              `json:"clientId"`
	ProjectID   string              `json:"projectId"`
	AssigneeIDs []string            `json:"assigneeIds"`
	SubTasks    []database.SubTask  `json:"subTasks"`
	Attachments []string            `json:"attachments"`
}

// UpdateTaskInput is a shallow merge: nil fields are left as stored, set
// slices replace the stored slice wholesale.
type UpdateTaskInput struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *database.TaskStatus `json:"status"`
	DueDate     *string              `json:"dueDate"`
	ClientID    *string              `json:"clientId"`
	ProjectID   *string              `json:"projectId"`
	SubTasks    *[]database.SubTask  `json:"subTasks"`
	Attachments *[]string            `json:"attachments"`
}

type TaskService struct {
	repo          Repository
	notifications *NotificationService
	log           *zap.Logger
	now           func() time.Time
}

func NewTaskService(repo Repository, notifications *NotificationService, logger *zap.Logger) *TaskService {
	return &TaskService{
		repo:          repo,
		notifications: notifications,
		log:           logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskService) List(ctx context.Context) ([]TaskView, error) {
	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.Users(ctx)
	if err != nil {
		return nil, err
	}

	byID := usersByID(users)
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskView{Task: t, Assignees: assignees(t.AssigneeIDs, byID)})
	}
	return out, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (TaskView, error) {
	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return TaskView{}, err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return TaskView{}, notFound("task")
	}
	return s.view(ctx, tasks[idx])
}

func (s *TaskService) view(ctx context.Context, t database.Task) (TaskView, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return TaskView{}, err
	}
	return TaskView{Task: t, Assignees: assignees(t.AssigneeIDs, usersByID(users))}, nil
}

// Create appends a new task owned by actor. Server defaults (id, timestamps,
// empty sub-collections) are filled in for anything the caller left out.
func (s *TaskService) Create(ctx context.Context, actor Actor, in CreateTaskInput) (TaskView, error) {
	title := cleanText(in.Title)
	description := cleanText(in.Description)
	if title == "" || description == "" || strings.TrimSpace(in.DueDate) == "" {
		return TaskView{}, invalid("all fields required: title, description and dueDate")
	}
	dueDate, err := normalizeDate("dueDate", in.DueDate)
	if err != nil {
		return TaskView{}, err
	}
	status := in.Status
	if status == "" {
		status = database.TaskDraft
	}
	if !status.Valid() {
		return TaskView{}, invalid("invalid status %q", status)
	}

	users, err := s.repo.Users(ctx)
	if err != nil {
		return TaskView{}, err
	}
	byID := usersByID(users)
	assigneeIDs := uniqueIDs(in.AssigneeIDs)
	if err := ensureUsersExist(byID, assigneeIDs); err != nil {
		return TaskView{}, err
	}

	attachments := in.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	now := s.now()
	task := database.Task{
		ID:          newID(),
		Title:       title,
		Description: description,
		Status:      status,
		DueDate:     dueDate,
		CreatedBy:   actor.ID,
		ClientID:    strings.TrimSpace(in.ClientID),
		ProjectID:   strings.TrimSpace(in.ProjectID),
		AssigneeIDs: assigneeIDs,
		SubTasks:    normalizeSubTasks(in.SubTasks),
		Comments:    []database.Comment{},
		Attachments: attachments,
		EditHistory: []database.EditEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return TaskView{}, err
	}
	tasks = append(tasks, task)
	if err := s.repo.SaveTasks(ctx, tasks); err != nil {
		return TaskView{}, err
	}

	s.notifications.pushAll(ctx, without(assigneeIDs, actor.ID), assignedNotification(task, actor))
	s.log.Info("task created", zap.String("task_id", task.ID), zap.String("actor_id", actor.ID))

	return TaskView{Task: task, Assignees: assignees(task.AssigneeIDs, byID)}, nil
}

// Update shallow-merges in into the stored task and records the changed
// fields in its edit history. Changing the status needs the same rights as
// MoveTask.
func (s *TaskService) Update(ctx context.Context, actor Actor, id string, in UpdateTaskInput) (TaskView, error) {
	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return TaskView{}, err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return TaskView{}, notFound("task")
	}
	t := tasks[idx]
	var changes []string

	if in.Status != nil && *in.Status != t.Status {
		if !in.Status.Valid() {
			return TaskView{}, invalid("invalid status %q", *in.Status)
		}
		if !canChangeTask(actor, t) {
			return TaskView{}, fmt.Errorf("only the task creator or an admin can change its status: %w", ErrForbidden)
		}
		changes = append(changes, fmt.Sprintf("status (%s → %s)", t.Status, *in.Status))
		t.Status = *in.Status
	}
	if in.Title != nil {
		title := cleanText(*in.Title)
		if title == "" {
			return TaskView{}, invalid("title cannot be empty")
		}
		if title != t.Title {
			changes = append(changes, "title")
			t.Title = title
		}
	}
	if in.Description != nil {
		if d := cleanText(*in.Description); d != t.Description {
			changes = append(changes, "description")
			t.Description = d
		}
	}
	if in.DueDate != nil {
		due, err := normalizeDate("dueDate", *in.DueDate)
		if err != nil {
			return TaskView{}, err
		}
		if due != t.DueDate {
			changes = append(changes, "dueDate")
			t.DueDate = due
		}
	}
	if in.ClientID != nil && strings.TrimSpace(*in.ClientID) != t.ClientID {
		changes = append(changes, "clientId")
		t.ClientID = strings.TrimSpace(*in.ClientID)
	}
	if in.ProjectID != nil && strings.TrimSpace(*in.ProjectID) != t.ProjectID {
		changes = append(changes, "projectId")
		t.ProjectID = strings.TrimSpace(*in.ProjectID)
	}
	if in.SubTasks != nil {
		changes = append(changes, "subTasks")
		t.SubTasks = normalizeSubTasks(*in.SubTasks)
	}
	if in.Attachments != nil {
		changes = append(changes, "attachments")
		t.Attachments = append([]string{}, *in.Attachments...)
	}

	now := s.now()
	t.UpdatedAt = now
	if len(changes) > 0 {
		t.EditHistory = append(t.EditHistory, database.EditEntry{
			UserID:    actor.ID,
			Timestamp: now,
			Changes:   "updated " + strings.Join(changes, ", "),
		})
	}

	tasks[idx] = t
	if err := s.repo.SaveTasks(ctx, tasks); err != nil {
		return TaskView{}, err
	}

	if len(changes) > 0 {
		s.notifications.pushAll(ctx, without(t.AssigneeIDs, actor.ID), database.Notification{
			Type:       database.NotifyTaskUpdated,
			Title:      "Task updated",
			Message:    fmt.Sprintf("%s updated %q: %s", actor.Name, t.Title, strings.Join(changes, ", ")),
			TaskID:     t.ID,
			EntityID:   t.ID,
			EntityType: "task",
		})
	}
	return s.view(ctx, t)
}

// MoveTask changes the status of a task, the kanban drag. Only the creator
// or an admin may move a task.
func (s *TaskService) MoveTask(ctx context.Context, actor Actor, id string, status database.TaskStatus) (TaskView, error) {
	if !status.Valid() {
		return TaskView{}, invalid("invalid status %q", status)
	}

	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return TaskView{}, err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return TaskView{}, notFound("task")
	}
	t := tasks[idx]
	if !canChangeTask(actor, t) {
		return TaskView{}, fmt.Errorf("only the task creator or an admin can move it: %w", ErrForbidden)
	}
	if t.Status == status {
		return s.view(ctx, t)
	}

	now := s.now()
	previous := t.Status
	t.Status = status
	t.UpdatedAt = now
	t.EditHistory = append(t.EditHistory, database.EditEntry{
		UserID:    actor.ID,
		Timestamp: now,
		Changes:   fmt.Sprintf("moved from %s to %s", previous, status),
	})

	tasks[idx] = t
	if err := s.repo.SaveTasks(ctx, tasks); err != nil {
		return TaskView{}, err
	}

	s.notifications.pushAll(ctx, without(t.AssigneeIDs, actor.ID), database.Notification{
		Type:       database.NotifyTaskStatus,
		Title:      "Task status changed",
		Message:    fmt.Sprintf("%q moved from %s to %s", t.Title, previous, status),
		TaskID:     t.ID,
		EntityID:   t.ID,
		EntityType: "task",
	})
	return s.view(ctx, t)
}

// Delete removes a task. Unknown ids leave the collection untouched.
func (s *TaskService) Delete(ctx context.Context, actor Actor, id string) error {
	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return notFound("task")
	}
	if !canChangeTask(actor, tasks[idx]) {
		return fmt.Errorf("only the task creator or an admin can delete it: %w", ErrForbidden)
	}

	tasks = append(tasks[:idx], tasks[idx+1:]...)
	if err := s.repo.SaveTasks(ctx, tasks); err != nil {
		return err
	}
	s.log.Info("task deleted", zap.String("task_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// Assign adds userIDs to the task. Ids already on the task are skipped, the
// task is saved first, then each newly added user gets one notification.
func (s *TaskService) Assign(ctx context.Context, actor Actor, id string, userIDs []string) (TaskView, error) {
	userIDs = uniqueIDs(userIDs)
	if len(userIDs) == 0 {
		return TaskView{}, invalid("userIds is required")
	}

	users, err := s.repo.Users(ctx)
	if err != nil {
		return TaskView{}, err
	}
	byID := usersByID(users)
	if err := ensureUsersExist(byID, userIDs); err != nil {
		return TaskView{}, err
	}

	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return TaskView{}, err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return TaskView{}, notFound("task")
	}
	t := tasks[idx]
	if !canManage(actor, t.CreatedBy) {
		return TaskView{}, fmt.Errorf("not allowed to assign this task: %w", ErrForbidden)
	}

	var added []string
	for _, uid := range userIDs {
		if t.HasAssignee(uid) {
			continue
		}
		t.AssigneeIDs = append(t.AssigneeIDs, uid)
		added = append(added, uid)
	}

	if len(added) > 0 {
		now := s.now()
		t.UpdatedAt = now
		t.EditHistory = append(t.EditHistory, database.EditEntry{
			UserID:    actor.ID,
			Timestamp: now,
			Changes:   "assigned " + strings.Join(assigneeNames(added, byID), ", "),
		})
		tasks[idx] = t
		if err := s.repo.SaveTasks(ctx, tasks); err != nil {
			return TaskView{}, err
		}
		s.notifications.pushAll(ctx, added, assignedNotification(t, actor))
	}

	return TaskView{Task: t, Assignees: assignees(t.AssigneeIDs, byID)}, nil
}

// AddComment appends a comment and notifies the creator and assignees.
func (s *TaskService) AddComment(ctx context.Context, actor Actor, id, text string) (database.Comment, error) {
	text = cleanText(text)
	if text == "" {
		return database.Comment{}, invalid("text is required")
	}

	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return database.Comment{}, err
	}
	idx := indexOfTask(tasks, id)
	if idx < 0 {
		return database.Comment{}, notFound("task")
	}

	now := s.now()
	c := database.Comment{ID: newID(), UserID: actor.ID, Text: text, Timestamp: now}
	t := tasks[idx]
	t.Comments = append(t.Comments, c)
	t.UpdatedAt = now
	tasks[idx] = t
	if err := s.repo.SaveTasks(ctx, tasks); err != nil {
		return database.Comment{}, err
	}

	recipients := without(uniqueIDs(append([]string{t.CreatedBy}, t.AssigneeIDs...)), actor.ID)
	s.notifications.pushAll(ctx, recipients, database.Notification{
		Type:       database.NotifyTaskComment,
		Title:      "New comment",
		Message:    fmt.Sprintf("%s commented on %q", actor.Name, t.Title),
		TaskID:     t.ID,
		EntityID:   t.ID,
		EntityType: "task",
	})
	return c, nil
}

func assignedNotification(t database.Task, actor Actor) database.Notification {
	return database.Notification{
		Type:       database.NotifyTaskAssigned,
		Title:      "New task assigned",
		Message:    fmt.Sprintf("%s assigned you to %q", actor.Name, t.Title),
		TaskID:     t.ID,
		ProjectID:  t.ProjectID,
		EntityID:   t.ID,
		EntityType: "task",
	}
}

func normalizeSubTasks(in []database.SubTask) []database.SubTask {
	out := make([]database.SubTask, 0, len(in))
	for _, st := range in {
		st.Title = cleanText(st.Title)
		if st.Title == "" {
			continue
		}
		if st.ID == "" {
			st.ID = newID()
		}
		out = append(out, st)
	}
	return out
}

func assigneeNames(ids []string, users map[string]database.User) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, users[id].FullName())
	}
	return names
}

func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

func indexOfTask(tasks []database.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
