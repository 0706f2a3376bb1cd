package model

import "time"

// Role is a fixed permission tier assigned to a user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// User stores Telegram user metadata.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string `gorm:"index"`
	Role       Role   `gorm:"default:member"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName returns the best human label for the user.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return "user"
	}
}
