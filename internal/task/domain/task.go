package domain

import "time"

// Task is a to-do item. Every task belongs to exactly one user and is only
// ever visible to that user.
type Task struct {
	ID        string
	UserID    string
	Title     string
	Priority  int
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ListFilter struct {
	Skip               int
	Limit              int
	Completed          *bool
	SortByPriorityDesc bool
}

// Patch holds the fields of a partial update; nil means unchanged.
type Patch struct {
	Title     *string
	Priority  *int
	Completed *bool
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Priority == nil && p.Completed == nil
}
