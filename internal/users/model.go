package users

import (
	"time"
)

// Provider identifies how a user authenticated.
type Provider string

const (
	// ProviderGoogle marks users created through Google sign-in.
	ProviderGoogle Provider = "google"
	// ProviderAnonymous marks locally created identities awaiting upgrade.
	ProviderAnonymous Provider = "anonymous"
)

// User is an identity record. Rows are created on first authentication and
// only ever updated to record a merge; the anonymous side of a merge is the
// only row that gets destroyed.
type User struct {
	ID               uint       `gorm:"column:id;primaryKey"`
	Email            string     `gorm:"column:email;size:320;not null;uniqueIndex"`
	Name             string     `gorm:"column:name;size:190;not null"`
	Provider         Provider   `gorm:"column:provider;size:32;not null;uniqueIndex:idx_users_provider_uid,priority:1"`
	UID              string     `gorm:"column:uid;size:190;not null;uniqueIndex:idx_users_provider_uid,priority:2"`
	MergedFromUserID *uint      `gorm:"column:merged_from_user_id;index"`
	MergedAt         *time.Time `gorm:"column:merged_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user records.
func (User) TableName() string {
	return "users"
}

// Anonymous reports whether the user is a local identity without an external provider.
func (u User) Anonymous() bool {
	return u.Provider == ProviderAnonymous
}
