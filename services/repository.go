package services

import (
	"context"

	"github.com/CrowderSoup/taskpulse/database"
)

// Repository is the persistence contract the services need. *database.Store
// satisfies it for every backend.
type Repository interface {
	Users(ctx context.Context) ([]database.User, error)
	SaveUsers(ctx context.Context, users []database.User) error
	Tasks(ctx context.Context) ([]database.Task, error)
	SaveTasks(ctx context.Context, tasks []database.Task) error
	Projects(ctx context.Context) ([]database.Project, error)
	SaveProjects(ctx context.Context, projects []database.Project) error
	Clients(ctx context.Context) ([]database.Client, error)
	SaveClients(ctx context.Context, clients []database.Client) error
}

func usersByID(users []database.User) map[string]database.User {
	m := make(map[string]database.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return m
}

// assignees resolves stored ids into summaries. Ids of deleted users are
// dropped from the view.
func assignees(ids []string, users map[string]database.User) []database.Assignee {
	out := make([]database.Assignee, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u.Assignee())
		}
	}
	return out
}
