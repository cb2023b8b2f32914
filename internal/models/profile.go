package models

import "time"

// UserProfile represents a user of the focus service
type UserProfile struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Age          int       `json:"age,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Height       float64   `json:"height,omitempty"` // cm
	Weight       float64   `json:"weight,omitempty"` // kg
	ActivityGoal int       `json:"activity_goal"`    // daily steps
	CreatedAt    time.Time `json:"created_at"`
}
