package model

import "time"

// Client is a studio-scoped client record.  The same person may exist
// under several studios; rows that belong to a real account share the
// AccountID.  Guest clients were created from an anonymous email.
type Client struct {
	ID        string    `json:"id"`
	StudioID  string    `json:"studio_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsGuest   bool      `json:"is_guest"`
	AccountID *string   `json:"account_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
