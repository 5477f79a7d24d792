package services

import (
	"context"
	"fmt"
	"time"

	"github.com/CrowderSoup/taskpulse/database"
	"go.uber.org/zap"
)

type seedUser struct {
	email, password, first, last string
	role                         database.Role
}

var seedUsers = []seedUser{
	{"admin@taskpulse.local", "admin123", "Alex", "Admin", database.RoleAdmin},
	{"lead@taskpulse.local", "lead123", "Taylor", "Lead", database.RoleTeamLead},
	{"employee@taskpulse.local", "employee123", "Jordan", "Employee", database.RoleEmployee},
}

// Seed fills an empty store with demo accounts, a client, a project and two
// tasks. It does nothing when any user already exists.
func Seed(ctx context.Context, repo Repository, logger *zap.Logger) error {
	existing, err := repo.Users(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	users := make([]database.User, 0, len(seedUsers))
	for _, su := range seedUsers {
		hash, err := hashPassword(su.password)
		if err != nil {
			return err
		}
		users = append(users, database.User{
			ID:            newID(),
			Email:         su.email,
			FirstName:     su.first,
			LastName:      su.last,
			PasswordHash:  hash,
			Role:          su.role,
			Avatar:        avatarURL(su.first, su.last),
			Notifications: []database.Notification{},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	admin, lead, employee := users[0], users[1], users[2]

	client := database.Client{
		ID:          newID(),
		Name:        "Acme Corp",
		ContactName: "Wile E. Coyote",
		Email:       "contact@acme.example",
		Phone:       "+1 555 0100",
		Description: "Long-standing client",
		Status:      database.ClientActive,
		Links:       []string{"https://acme.example"},
		CreatedBy:   admin.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	project := database.Project{
		ID:              newID(),
		Name:            "Website Redesign",
		Description:     "Refresh the marketing site",
		Status:          database.ProjectActive,
		StartDate:       now.Format(dateLayout),
		EndDate:         now.AddDate(0, 2, 0).Format(dateLayout),
		ClientID:        client.ID,
		CreatedBy:       admin.ID,
		AssignedUserIDs: []string{lead.ID, employee.ID},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	newTask := func(title, description string, status database.TaskStatus, due time.Time, assignee string) database.Task {
		return database.Task{
			ID:          newID(),
			Title:       title,
			Description: description,
			Status:      status,
			DueDate:     due.Format(dateLayout),
			CreatedBy:   lead.ID,
			ClientID:    client.ID,
			ProjectID:   project.ID,
			AssigneeIDs: []string{assignee},
			SubTasks:    []database.SubTask{},
			Comments:    []database.Comment{},
			Attachments: []string{},
			EditHistory: []database.EditEntry{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	tasks := []database.Task{
		newTask("Draft sitemap", "Outline the new page structure", database.TaskInProgress, now.AddDate(0, 0, 7), employee.ID),
		newTask("Review brand guide", "Collect feedback on colours and type", database.TaskDraft, now.AddDate(0, 0, 14), lead.ID),
	}

	if err := repo.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	if err := repo.SaveClients(ctx, []database.Client{client}); err != nil {
		return fmt.Errorf("failed to seed clients: %w", err)
	}
	if err := repo.SaveProjects(ctx, []database.Project{project}); err != nil {
		return fmt.Errorf("failed to seed projects: %w", err)
	}
	if err := repo.SaveTasks(ctx, tasks); err != nil {
		return fmt.Errorf("failed to seed tasks: %w", err)
	}

	logger.Info("seeded demo data", zap.Int("users", len(users)), zap.Int("tasks", len(tasks)))
	return nil
}
