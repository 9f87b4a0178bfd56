package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/clickrace/internal/loadtest"
)

const runTimeout = 10 * time.Minute

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "Control API base URL")
		tcpAddr  = flag.String("tcp", "localhost:9090", "Click ingress address")
		session  = flag.String("session", "", "Round id (default: generated)")
		players  = flag.Int("players", loadtest.DefaultPlayers, "Honest players")
		cheaters = flag.Int("cheaters", loadtest.DefaultCheaters, "Players that exceed the rate limit")
		clicks   = flag.Int("clicks", loadtest.DefaultClicksPerUser, "Clicks per player")
		interval = flag.Duration("interval", loadtest.DefaultClickInterval, "Pause between an honest player's clicks")
		settle   = flag.Duration("settle", loadtest.DefaultSettle, "Wait for durable writes before reading results")
		timeout  = flag.Duration("timeout", loadtest.DefaultTimeout, "Request timeout")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Log every rejected click")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	closeLog, err := loadtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	_, err = loadtest.Run(ctx, loadtest.Config{
		BaseURL:       *baseURL,
		TCPAddr:       *tcpAddr,
		SessionID:     *session,
		Players:       *players,
		Cheaters:      *cheaters,
		ClicksPerUser: *clicks,
		ClickInterval: *interval,
		Timeout:       *timeout,
		Settle:        *settle,
		Verbose:       *verbose,
	})
	if err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		cancel()
		stop()
		_ = closeLog()
		os.Exit(1)
	}
}
