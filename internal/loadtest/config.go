// Package loadtest drives a running clickrace deployment with simulated
// players and checks the leaderboard it produces.
package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Control API base URL
	TCPAddr       string        // Click ingress address
	SessionID     string        // Round id; generated when empty
	Players       int           // Honest players
	Cheaters      int           // Players that burst past the rate limit
	ClicksPerUser int           // Clicks sent by every player
	ClickInterval time.Duration // Pause between an honest player's clicks
	Timeout       time.Duration // HTTP request and TCP read timeout
	Settle        time.Duration // Wait before reading the leaderboard
	Verbose       bool          // Log every rejection
}

// Player is one simulated participant.
type Player struct {
	UserID   string
	Password string
	Address  string
	Cheater  bool
}

// Result is what one player observed over its connection.
type Result struct {
	Player       Player
	Sent         int
	Accepted     int
	Rejections   map[string]int
	Disqualified bool
	Err          error
}

// Entry mirrors a leaderboard row.
type Entry struct {
	UserID     string `json:"userId"`
	ClickCount int    `json:"clickCount"`
}

// Winner mirrors the winner returned by POST /event/end.
type Winner struct {
	UserID     string `json:"userId"`
	Address    string `json:"address"`
	ClickCount int    `json:"clickCount"`
}

// Stats holds run statistics.
type Stats struct {
	ClicksSent     int
	ClicksAccepted int
	ClicksRejected int
	Disqualified   int
	Failed         int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

func (c Config) withDefaults() Config {
	if c.Players <= 0 {
		c.Players = DefaultPlayers
	}
	if c.Cheaters < 0 {
		c.Cheaters = 0
	}
	if c.ClicksPerUser <= 0 {
		c.ClicksPerUser = DefaultClicksPerUser
	}
	if c.ClickInterval <= 0 {
		c.ClickInterval = DefaultClickInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	return c
}
