// Package access maps user roles to the fixed permission sets checked by the
// task CRUD layer. The recurrence engine never consults it.
package access

import "task-planner/internal/model"

// Permission names an action, e.g. "tasks:update-all".
type Permission string

const (
	TasksCreate    Permission = "tasks:create"
	TasksReadOwn   Permission = "tasks:read-own"
	TasksReadAll   Permission = "tasks:read-all"
	TasksUpdateOwn Permission = "tasks:update-own"
	TasksUpdateAll Permission = "tasks:update-all"
	TasksDeleteOwn Permission = "tasks:delete-own"
	TasksDeleteAll Permission = "tasks:delete-all"
	TasksAssign    Permission = "tasks:assign"
	SweepRun       Permission = "sweep:run"
	UsersManage    Permission = "users:manage"
)

var memberPermissions = []Permission{TasksCreate, TasksReadOwn, TasksUpdateOwn, TasksDeleteOwn}

var managerPermissions = append(append([]Permission{}, memberPermissions...),
	TasksReadAll, TasksUpdateAll, TasksAssign)

var adminPermissions = append(append([]Permission{}, managerPermissions...),
	TasksDeleteAll, SweepRun, UsersManage)

var rolePermissions = map[model.Role]map[Permission]struct{}{
	model.RoleMember:  setOf(memberPermissions),
	model.RoleManager: setOf(managerPermissions),
	model.RoleAdmin:   setOf(adminPermissions),
}

// HasPermission reports whether user's role grants p. A nil user or an unknown role has none.
func HasPermission(user *model.User, p Permission) bool {
	if user == nil {
		return false
	}
	_, ok := rolePermissions[user.Role][p]
	return ok
}

// Permissions lists what role grants, in a stable order.
func Permissions(role model.Role) []Permission {
	switch role {
	case model.RoleAdmin:
		return append([]Permission{}, adminPermissions...)
	case model.RoleManager:
		return append([]Permission{}, managerPermissions...)
	case model.RoleMember:
		return append([]Permission{}, memberPermissions...)
	default:
		return nil
	}
}

// ParseRole accepts admin, manager and member; anything else is rejected.
func ParseRole(s string) (model.Role, bool) {
	switch r := model.Role(s); r {
	case model.RoleAdmin, model.RoleManager, model.RoleMember:
		return r, true
	default:
		return "", false
	}
}

// IsOwner reports whether user created or is assigned the task.
func IsOwner(user *model.User, task *model.Task) bool {
	return user != nil && task != nil && (task.AssignedTo == user.ID || task.CreatedBy == user.ID)
}

// CanRead, CanUpdate and CanDelete combine the -all permission with the -own
// permission plus ownership.
func CanRead(user *model.User, task *model.Task) bool {
	return HasPermission(user, TasksReadAll) || (HasPermission(user, TasksReadOwn) && IsOwner(user, task))
}

func CanUpdate(user *model.User, task *model.Task) bool {
	return HasPermission(user, TasksUpdateAll) || (HasPermission(user, TasksUpdateOwn) && IsOwner(user, task))
}

func CanDelete(user *model.User, task *model.Task) bool {
	return HasPermission(user, TasksDeleteAll) || (HasPermission(user, TasksDeleteOwn) && IsOwner(user, task))
}

func setOf(ps []Permission) map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(ps))
	for _, p := range ps {
		m[p] = struct{}{}
	}
	return m
}
