package domain

import "github.com/google/uuid"

// StudyGroup is a set of members who can share cards with each other.
type StudyGroup struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	AdminID uuid.UUID `json:"admin_id"`
}

// GroupMembership places a user in a group.
type GroupMembership struct {
	GroupID uuid.UUID `json:"group_id"`
	UserID  uuid.UUID `json:"user_id"`
}
