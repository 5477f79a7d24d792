package services

import (
	"context"
	"sort"

	"github.com/CrowderSoup/taskpulse/database"
)

// EnhancedTask inlines the task's client and project. Either is nil when the
// reference is empty or points at a deleted record.
type EnhancedTask struct {
	TaskView
	Client  *database.Client  `json:"client"`
	Project *database.Project `json:"project"`
}

type Analytics struct {
	Total          int                         `json:"total"`
	Completed      int                         `json:"completed"`
	Overdue        int                         `json:"overdue"`
	CompletionRate float64                     `json:"completionRate"`
	ByStatus       map[database.TaskStatus]int `json:"byStatus"`
	ByProject      map[string]int              `json:"byProject"`
	Projects       int                         `json:"projects"`
	Clients        int                         `json:"clients"`
}

type CalendarEvent struct {
	Date       string `json:"date"`
	Kind       string `json:"kind"` // task-due, project-start, project-end
	Title      string `json:"title"`
	EntityID   string `json:"entityId"`
	EntityType string `json:"entityType"`
	Status     string `json:"status"`
}

// Enhanced returns every task with its relations resolved. Nothing is cached.
func (s *TaskService) Enhanced(ctx context.Context) ([]EnhancedTask, error) {
	views, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return nil, err
	}

	clientsByID := make(map[string]database.Client, len(clients))
	for _, c := range clients {
		clientsByID[c.ID] = c
	}
	projectsByID := make(map[string]database.Project, len(projects))
	for _, p := range projects {
		projectsByID[p.ID] = p
	}

	out := make([]EnhancedTask, 0, len(views))
	for _, v := range views {
		et := EnhancedTask{TaskView: v}
		if c, ok := clientsByID[v.ClientID]; ok {
			et.Client = &c
		}
		if p, ok := projectsByID[v.ProjectID]; ok {
			et.Project = &p
		}
		out = append(out, et)
	}
	return out, nil
}

// Analytics reduces the task collection into dashboard counters.
func (s *TaskService) Analytics(ctx context.Context) (Analytics, error) {
	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return Analytics{}, err
	}
	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return Analytics{}, err
	}
	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return Analytics{}, err
	}

	a := Analytics{
		Total:     len(tasks),
		ByStatus:  make(map[database.TaskStatus]int, len(database.TaskStatuses)),
		ByProject: make(map[string]int),
		Projects:  len(projects),
		Clients:   len(clients),
	}
	for _, st := range database.TaskStatuses {
		a.ByStatus[st] = 0
	}

	today := s.now().Format(dateLayout)
	for _, t := range tasks {
		a.ByStatus[t.Status]++
		a.ByProject[t.ProjectID]++
		if t.Status == database.TaskCompleted {
			a.Completed++
		}
		// Dates are stored as YYYY-MM-DD so string order is date order.
		if t.DueDate != "" && t.DueDate < today && !t.Status.Closed() {
			a.Overdue++
		}
	}
	if a.Total > 0 {
		a.CompletionRate = float64(a.Completed) / float64(a.Total)
	}
	return a, nil
}

// Calendar lists dated events between from and to inclusive. Either bound
// may be empty.
func (s *TaskService) Calendar(ctx context.Context, from, to string) ([]CalendarEvent, error) {
	from, err := normalizeDate("from", from)
	if err != nil {
		return nil, err
	}
	to, err = normalizeDate("to", to)
	if err != nil {
		return nil, err
	}
	if from != "" && to != "" && to < from {
		return nil, invalid("to must not be before from")
	}

	tasks, err := s.repo.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.repo.Projects(ctx)
	if err != nil {
		return nil, err
	}

	inRange := func(d string) bool {
		return d != "" && (from == "" || d >= from) && (to == "" || d <= to)
	}

	events := []CalendarEvent{}
	for _, t := range tasks {
		if inRange(t.DueDate) {
			events = append(events, CalendarEvent{
				Date: t.DueDate, Kind: "task-due", Title: t.Title,
				EntityID: t.ID, EntityType: "task", Status: string(t.Status),
			})
		}
	}
	for _, p := range projects {
		if inRange(p.StartDate) {
			events = append(events, CalendarEvent{
				Date: p.StartDate, Kind: "project-start", Title: p.Name,
				EntityID: p.ID, EntityType: "project", Status: string(p.Status),
			})
		}
		if inRange(p.EndDate) {
			events = append(events, CalendarEvent{
				Date: p.EndDate, Kind: "project-end", Title: p.Name,
				EntityID: p.ID, EntityType: "project", Status: string(p.Status),
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date < events[j].Date
	})
	return events, nil
}
