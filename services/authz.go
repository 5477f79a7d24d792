package services

import "github.com/CrowderSoup/taskpulse/database"

// Actor is the authenticated user a service call is made on behalf of.
// Handlers build it from the stored user record, never from request input.
type Actor struct {
	ID    string
	Email string
	Name  string
	Role  database.Role
}

func ActorFrom(u database.User) Actor {
	return Actor{ID: u.ID, Email: u.Email, Name: u.FullName(), Role: u.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == database.RoleAdmin
}

// canChangeTask guards status moves, deletes and status edits: only the
// creator or an admin.
func canChangeTask(a Actor, t database.Task) bool {
	return a.IsAdmin() || a.ID == t.CreatedBy
}

// canManage guards assignment and project edits.
func canManage(a Actor, createdBy string) bool {
	return a.IsAdmin() || a.Role == database.RoleTeamLead || a.ID == createdBy
}
