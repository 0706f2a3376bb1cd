package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"task-planner/internal/access"
	"task-planner/internal/model"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role    model.Role
		allowed []access.Permission
		denied  []access.Permission
	}{
		{
			role:    model.RoleMember,
			allowed: []access.Permission{access.TasksCreate, access.TasksReadOwn, access.TasksUpdateOwn, access.TasksDeleteOwn},
			denied:  []access.Permission{access.TasksReadAll, access.TasksAssign, access.SweepRun, access.UsersManage},
		},
		{
			role:    model.RoleManager,
			allowed: []access.Permission{access.TasksReadAll, access.TasksUpdateAll, access.TasksAssign},
			denied:  []access.Permission{access.TasksDeleteAll, access.SweepRun, access.UsersManage},
		},
		{
			role:    model.RoleAdmin,
			allowed: []access.Permission{access.TasksDeleteAll, access.SweepRun, access.UsersManage, access.TasksCreate},
		},
		{
			role:   "guest",
			denied: []access.Permission{access.TasksCreate, access.TasksReadOwn},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			user := &model.User{ID: 1, Role: tt.role}
			for _, p := range tt.allowed {
				assert.True(t, access.HasPermission(user, p), p)
			}
			for _, p := range tt.denied {
				assert.False(t, access.HasPermission(user, p), p)
			}
		})
	}

	assert.False(t, access.HasPermission(nil, access.TasksCreate))
}

func TestPermissionsAreCumulative(t *testing.T) {
	member := access.Permissions(model.RoleMember)
	manager := access.Permissions(model.RoleManager)
	admin := access.Permissions(model.RoleAdmin)

	assert.Subset(t, manager, member)
	assert.Subset(t, admin, manager)
	assert.Len(t, admin, 10)
	assert.Nil(t, access.Permissions("guest"))

	// Callers get a copy.
	member[0] = "mutated"
	assert.Equal(t, access.TasksCreate, access.Permissions(model.RoleMember)[0])
}

func TestParseRole(t *testing.T) {
	r, ok := access.ParseRole("manager")
	assert.True(t, ok)
	assert.Equal(t, model.RoleManager, r)

	_, ok = access.ParseRole("root")
	assert.False(t, ok)
}

func TestTaskLevelChecks(t *testing.T) {
	owner := &model.User{ID: 1, Role: model.RoleMember}
	stranger := &model.User{ID: 2, Role: model.RoleMember}
	manager := &model.User{ID: 3, Role: model.RoleManager}
	admin := &model.User{ID: 4, Role: model.RoleAdmin}
	task := &model.Task{ID: 9, AssignedTo: 1, CreatedBy: 5}

	assert.True(t, access.IsOwner(owner, task))
	assert.True(t, access.IsOwner(&model.User{ID: 5}, task))
	assert.False(t, access.IsOwner(stranger, task))
	assert.False(t, access.IsOwner(nil, task))

	assert.True(t, access.CanRead(owner, task))
	assert.False(t, access.CanRead(stranger, task))
	assert.True(t, access.CanRead(manager, task))

	assert.True(t, access.CanUpdate(owner, task))
	assert.False(t, access.CanUpdate(stranger, task))
	assert.True(t, access.CanUpdate(manager, task))

	assert.True(t, access.CanDelete(owner, task))
	assert.False(t, access.CanDelete(manager, task))
	assert.True(t, access.CanDelete(admin, task))
}
