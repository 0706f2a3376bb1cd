package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"task-planner/internal/access"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// UserService manages user roles.
type UserService struct {
	userRepo *repository.UserRepository
	logger   *slog.Logger
}

func NewUserService(userRepo *repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{userRepo: userRepo, logger: logger}
}

// ChangeRole gives the user with username the named role and returns the
// updated user together with the permissions that role grants.
func (s *UserService) ChangeRole(ctx context.Context, actor *model.User, username, roleName string) (*model.User, []access.Permission, error) {
	if !access.HasPermission(actor, access.UsersManage) {
		return nil, nil, ErrForbidden
	}
	role, ok := access.ParseRole(strings.ToLower(strings.TrimSpace(roleName)))
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, roleName)
	}

	user, err := s.userRepo.FindByUsername(ctx, strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if err != nil {
		return nil, nil, fmt.Errorf("user %s: %w", username, err)
	}
	if user.ID == actor.ID && role != model.RoleAdmin {
		return nil, nil, fmt.Errorf("%w: admins cannot demote themselves", ErrInvalidInput)
	}

	if err := s.userRepo.SetRole(ctx, user.ID, role); err != nil {
		return nil, nil, err
	}
	user.Role = role
	s.logger.InfoContext(ctx, "role changed", "user_id", user.ID, "role", role, "by", actor.ID)
	return user, access.Permissions(role), nil
}
