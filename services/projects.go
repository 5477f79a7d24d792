package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"go.uber.org/zap"
)

type ProjectView struct {
	database.Project
	Assignees []database.Assignee `json:"assignees"`
}

type CreateProjectInput struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	Status          database.ProjectStatus `json:"status"`
	StartDate       string                 `json:"startDate"`
	EndDate         string                 `json:"endDate"`
	ClientID        string                 `json:"clientId"`
	AssignedUserIDs []string               `json:"assignedUserIds"`
}

type UpdateProjectInput struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	Status      *database.ProjectStatus `json:"status"`
	StartDate   *string                 `json:"startDate"`
	EndDate     *string                 `json:"endDate"`
	ClientID    *string                 `json:"clientId"`
}

type ProjectService struct {
	repo          Repository
	notifications *NotificationService
	log           *zap.Logger
	now           func() time.Time
}

func NewProjectService(repo Repository, notifications *NotificationService, logger *zap.Logger) *ProjectService {
	return &ProjectService{
		repo:          repo,
		notifications: notifications,
		log:           logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProjectService) List(ctx context.Context) ([]ProjectView, error) {
	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.Users(ctx)
	if err != nil {
		return nil, err
	}

	byID := usersByID(users)
	out := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		out = append(out, ProjectView{Project: p, Assignees: assignees(p.AssignedUserIDs, byID)})
	}
	return out, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (ProjectView, error) {
	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	idx := indexOfProject(projects, id)
	if idx < 0 {
		return ProjectView{}, notFound("project")
	}
	return s.view(ctx, projects[idx])
}

func (s *ProjectService) view(ctx context.Context, p database.Project) (ProjectView, error) {
	users, err := s.repo.Users(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	return ProjectView{Project: p, Assignees: assignees(p.AssignedUserIDs, usersByID(users))}, nil
}

func (s *ProjectService) Create(ctx context.Context, actor Actor, in CreateProjectInput) (ProjectView, error) {
	name := cleanText(in.Name)
	if name == "" {
		return ProjectView{}, invalid("name is required")
	}
	status := in.Status
	if status == "" {
		status = database.ProjectActive
	}
	if !status.Valid() {
		return ProjectView{}, invalid("invalid status %q", status)
	}
	start, end, err := projectDates(in.StartDate, in.EndDate)
	if err != nil {
		return ProjectView{}, err
	}

	users, err := s.repo.Users(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	byID := usersByID(users)
	assigned := uniqueIDs(in.AssignedUserIDs)
	if err := ensureUsersExist(byID, assigned); err != nil {
		return ProjectView{}, err
	}

	now := s.now()
	project := database.Project{
		ID:              newID(),
		Name:            name,
		Description:     cleanText(in.Description),
		Status:          status,
		StartDate:       start,
		EndDate:         end,
		ClientID:        strings.TrimSpace(in.ClientID),
		CreatedBy:       actor.ID,
		AssignedUserIDs: assigned,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	projects = append(projects, project)
	if err := s.repo.SaveProjects(ctx, projects); err != nil {
		return ProjectView{}, err
	}

	s.notifications.pushAll(ctx, without(assigned, actor.ID), projectAssignedNotification(project, actor))
	s.log.Info("project created", zap.String("project_id", project.ID), zap.String("actor_id", actor.ID))

	return ProjectView{Project: project, Assignees: assignees(assigned, byID)}, nil
}

func (s *ProjectService) Update(ctx context.Context, actor Actor, id string, in UpdateProjectInput) (ProjectView, error) {
	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	idx := indexOfProject(projects, id)
	if idx < 0 {
		return ProjectView{}, notFound("project")
	}
	p := projects[idx]
	if !canManage(actor, p.CreatedBy) {
		return ProjectView{}, fmt.Errorf("not allowed to edit this project: %w", ErrForbidden)
	}

	if in.Name != nil {
		if p.Name = cleanText(*in.Name); p.Name == "" {
			return ProjectView{}, invalid("name cannot be empty")
		}
	}
	if in.Description != nil {
		p.Description = cleanText(*in.Description)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return ProjectView{}, invalid("invalid status %q", *in.Status)
		}
		p.Status = *in.Status
	}
	if in.ClientID != nil {
		p.ClientID = strings.TrimSpace(*in.ClientID)
	}
	start, end := p.StartDate, p.EndDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if p.StartDate, p.EndDate, err = projectDates(start, end); err != nil {
		return ProjectView{}, err
	}
	p.UpdatedAt = s.now()

	projects[idx] = p
	if err := s.repo.SaveProjects(ctx, projects); err != nil {
		return ProjectView{}, err
	}
	return s.view(ctx, p)
}

func (s *ProjectService) Delete(ctx context.Context, actor Actor, id string) error {
	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return err
	}
	idx := indexOfProject(projects, id)
	if idx < 0 {
		return notFound("project")
	}
	if !actor.IsAdmin() && actor.ID != projects[idx].CreatedBy {
		return fmt.Errorf("only the project creator or an admin can delete it: %w", ErrForbidden)
	}

	projects = append(projects[:idx], projects[idx+1:]...)
	if err := s.repo.SaveProjects(ctx, projects); err != nil {
		return err
	}
	s.log.Info("project deleted", zap.String("project_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// Assign mirrors TaskService.Assign for projects.
func (s *ProjectService) Assign(ctx context.Context, actor Actor, id string, userIDs []string) (ProjectView, error) {
	userIDs = uniqueIDs(userIDs)
	if len(userIDs) == 0 {
		return ProjectView{}, invalid("userIds is required")
	}

	users, err := s.repo.Users(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	byID := usersByID(users)
	if err := ensureUsersExist(byID, userIDs); err != nil {
		return ProjectView{}, err
	}

	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return ProjectView{}, err
	}
	idx := indexOfProject(projects, id)
	if idx < 0 {
		return ProjectView{}, notFound("project")
	}
	p := projects[idx]
	if !canManage(actor, p.CreatedBy) {
		return ProjectView{}, fmt.Errorf("not allowed to assign this project: %w", ErrForbidden)
	}

	var added []string
	for _, uid := range userIDs {
		if p.HasAssignee(uid) {
			continue
		}
		p.AssignedUserIDs = append(p.AssignedUserIDs, uid)
		added = append(added, uid)
	}

	if len(added) > 0 {
		p.UpdatedAt = s.now()
		projects[idx] = p
		if err := s.repo.SaveProjects(ctx, projects); err != nil {
			return ProjectView{}, err
		}
		s.notifications.pushAll(ctx, added, projectAssignedNotification(p, actor))
	}

	return ProjectView{Project: p, Assignees: assignees(p.AssignedUserIDs, byID)}, nil
}

func projectAssignedNotification(p database.Project, actor Actor) database.Notification {
	return database.Notification{
		Type:       database.NotifyProjectAssigned,
		Title:      "Added to project",
		Message:    fmt.Sprintf("%s added you to project %q", actor.Name, p.Name),
		ProjectID:  p.ID,
		EntityID:   p.ID,
		EntityType: "project",
	}
}

func projectDates(start, end string) (string, string, error) {
	start, err := normalizeDate("startDate", start)
	if err != nil {
		return "", "", err
	}
	end, err = normalizeDate("endDate", end)
	if err != nil {
		return "", "", err
	}
	if start != "" && end != "" && end < start {
		return "", "", invalid("endDate must not be before startDate")
	}
	return start, end, nil
}

func indexOfProject(projects []database.Project, id string) int {
	for i, p := range projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}
