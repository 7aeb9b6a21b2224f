package models

import "time"

// Contributor binds one user to one project with exactly one role.
type Contributor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_contributor_project_user;not null" json:"project_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_contributor_project_user;index;not null" json:"user_id"`
	Role      Role      `gorm:"size:20;not null;index" json:"role"`
	JoinedAt  time.Time `gorm:"not null;index" json:"joined_at"`
}

func (Contributor) TableName() string { return "contributors" }
