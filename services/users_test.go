package services

import (
	"testing"

	"github.com/CrowderSoup/taskpulse/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		in   CreateUserInput
	}{
		{"missing email", CreateUserInput{Password: "secret1", FirstName: "a", LastName: "b"}},
		{"no at sign", CreateUserInput{Email: "nope", Password: "secret1", FirstName: "a", LastName: "b"}},
		{"short password", CreateUserInput{Email: "a@x.com", Password: "123", FirstName: "a", LastName: "b"}},
		{"bad role", CreateUserInput{Email: "a@x.com", Password: "secret1", FirstName: "a", LastName: "b", Role: "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.users.Create(env.ctx, tt.in)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestUserService_CreateKeepsRequestedRole(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.users.Create(env.ctx, CreateUserInput{
		Email: "lead@x.com", Password: "secret1", FirstName: "Team", LastName: "Lead",
		Role: database.RoleTeamLead, Avatar: "https://img.test/me.png",
	})
	require.NoError(t, err)
	assert.Equal(t, database.RoleTeamLead, u.Role)
	assert.Equal(t, "https://img.test/me.png", u.Avatar)
	assert.NotNil(t, u.Notifications)

	list, err := env.users.List(env.ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, u.ID, list[0].ID)
}

func TestUserService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("u1", "a@x.com", database.RoleEmployee)
	env.addUser("u2", "b@x.com", database.RoleEmployee)

	_, err := env.users.UpdateProfile(env.ctx, "u1", ProfileUpdate{Email: ptr("B@x.com")})
	assert.ErrorIs(t, err, ErrUserExists)

	profile, err := env.users.UpdateProfile(env.ctx, "u1", ProfileUpdate{
		FirstName: ptr("Grace"),
		Password:  ptr("newpass1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", profile.FirstName)
	assert.Equal(t, "u1", profile.LastName)
	assert.Equal(t, "a@x.com", profile.Email)

	_, _, err = env.auth.Login(env.ctx, "a@x.com", "newpass1")
	assert.NoError(t, err)

	_, err = env.users.UpdateProfile(env.ctx, "u1", ProfileUpdate{LastName: ptr("  ")})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestUserService_Delete(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser("admin", "admin@x.com", database.RoleAdmin)
	env.addUser("u1", "a@x.com", database.RoleEmployee)

	var verr *ValidationError
	assert.ErrorAs(t, env.users.Delete(env.ctx, admin, "admin"), &verr)

	require.NoError(t, env.users.Delete(env.ctx, admin, "u1"))
	assert.ErrorIs(t, env.users.Delete(env.ctx, admin, "u1"), ErrNotFound)

	_, err := env.users.Get(env.ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}
