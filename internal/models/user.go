package models

import "time"

// User is the slice of the user record this service reads for enrichment.
// User CRUD lives in another service; only last_seen is written here.
type User struct {
	ID          int64        `db:"id" json:"id"`
	Username    string       `db:"username" json:"username"`
	DisplayName string       `db:"display_name" json:"display_name"`
	Status      EntityStatus `db:"status" json:"-"`
	LastSeen    *time.Time   `db:"last_seen" json:"last_seen,omitempty"`
}

// DisplayNameOrUsername picks the best label for broadcast payloads.
func (u User) DisplayNameOrUsername() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
