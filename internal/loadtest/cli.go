package loadtest

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/clickrace/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging logs to stdout and, when logFile is set, to that file too.
// The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	var (
		w      io.Writer = os.Stdout
		closer           = func() error { return nil }
	)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f.Close
	}
	if err := logger.InitWith(logger.Options{Writer: w}); err != nil {
		return nil, err
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closer, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`clickrace load tool

Plays one round against a running deployment: signs players up, starts a
round, clicks over the TCP ingress, ends the round and checks the leaderboard
and winner against what every player was told.

Usage:
  load-clicks [options]

Options:
  -url string        Control API base URL (default "http://localhost:8080")
  -tcp string        Click ingress address (default "localhost:9090")
  -session string    Round id (default: generated)
  -players int       Honest players (default 20)
  -cheaters int      Players that exceed the rate limit (default 2)
  -clicks int        Clicks per player (default 10)
  -interval duration Pause between an honest player's clicks (default 300ms)
  -settle duration   Wait for durable writes before reading results (default 2s)
  -timeout duration  Request timeout (default 10s)
  -log string        Also write logs to this file
  -verbose           Log every rejected click
  -help              Show this help message
`)
}
