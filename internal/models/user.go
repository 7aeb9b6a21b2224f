package models

import "time"

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "user"
)

// User is an account known to the service. Role here is the system-wide
// role (admin, user), unrelated to per-project contributor roles.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password  string     `gorm:"size:255" json:"-"`
	Email     string     `gorm:"size:255" json:"email"`
	Nickname  string     `gorm:"size:100" json:"nickname"`
	Role      string     `gorm:"size:50;default:user" json:"role"` // admin, user
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }
