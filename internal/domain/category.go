package domain

import "time"

// Category groups tickets by topic. Only active categories take part in
// matching and prompt enumeration.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description *string
	IsActive    bool
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
