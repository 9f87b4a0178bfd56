package loadtest

import "time"

// Defaults applied by Config.withDefaults.
const (
	DefaultPlayers       = 20
	DefaultCheaters      = 2
	DefaultClicksPerUser = 10
	DefaultClickInterval = 300 * time.Millisecond
	DefaultTimeout       = 10 * time.Second
	DefaultSettle        = 2 * time.Second
)

// Wire values of the click protocol.
const (
	clickType           = "CLICK"
	reasonRateExceeded  = "RATE_EXCEEDED"
	reasonInactive      = "INACTIVE_TIMEOUT"
	reasonDisqualified  = "DISQUALIFIED"
	leaderboardMaxLimit = 100
)
