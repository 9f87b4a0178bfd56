// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	UserID     string `json:"userId"`
	ClickCount int    `json:"clickCount"`
}
