// models/user.go
package models

import (
	"time"
)

type User struct {
	ID          uint    `gorm:"primaryKey" json:"-"`
	UID         string  `gorm:"uniqueIndex;not null;size:36" json:"uid"`
	Username    *string `gorm:"uniqueIndex;size:15" json:"username,omitempty"`
	Email       *string `gorm:"uniqueIndex" json:"email,omitempty"`
	Password    string  `json:"-"`
	DisplayName string  `json:"displayName"`
	IsAnonymous bool    `gorm:"default:false" json:"isAnonymous"`

	// External sign-in account, empty for guest and email accounts.
	Provider   string  `gorm:"size:20;uniqueIndex:idx_users_provider" json:"provider,omitempty"`
	ProviderID *string `gorm:"size:64;uniqueIndex:idx_users_provider" json:"-"`

	// Timestamps
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	LastLogin time.Time `json:"lastLogin"`
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// Identity returns the token identity of the user.
func (u *User) Identity() Identity {
	name := u.DisplayName
	if u.Username != nil {
		name = *u.Username
	}
	return Identity{UID: u.UID, DisplayName: name, IsAnonymous: u.IsAnonymous}
}
