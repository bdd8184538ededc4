package domain

import "time"

// AccessToken describes an issued bearer token.
type AccessToken struct {
	ID        string
	UserID    string
	Value     string
	ExpiresAt time.Time
}
