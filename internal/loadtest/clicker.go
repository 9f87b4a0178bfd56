package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/clickrace/pkg/logger"
)

type clickRequest struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
}

type clickResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Error   string `json:"error"`
}

// newPlayers creates honest players followed by cheaters.
func newPlayers(honest, cheaters int) []Player {
	players := make([]Player, 0, honest+cheaters)
	for i := 0; i < honest+cheaters; i++ {
		id := uuid.NewString()
		players = append(players, Player{
			UserID:   "player-" + id[:8],
			Password: id,
			Address:  fmt.Sprintf("0x%040x", i+1),
			Cheater:  i >= honest,
		})
	}
	return players
}

// clickAll runs every player on its own connection and waits for them.
func clickAll(ctx context.Context, cfg Config, sessionID string, players []Player) []Result {
	results := make([]Result, len(players))
	var wg sync.WaitGroup
	for i, p := range players {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = play(ctx, cfg, sessionID, p)
		}()
	}
	wg.Wait()
	return results
}

// play sends the player's clicks over one connection. Honest players pace
// themselves; cheaters send back to back.
func play(ctx context.Context, cfg Config, sessionID string, p Player) Result {
	res := Result{Player: p, Rejections: make(map[string]int)}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.TCPAddr)
	if err != nil {
		res.Err = fmt.Errorf("dial %s: %w", cfg.TCPAddr, err)
		return res
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)
	for i := 0; i < cfg.ClicksPerUser; i++ {
		if i > 0 && !p.Cheater {
			select {
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			case <-time.After(cfg.ClickInterval):
			}
		}

		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
		if err := enc.Encode(clickRequest{Type: clickType, UserID: p.UserID, SessionID: sessionID}); err != nil {
			res.Err = fmt.Errorf("send click: %w", err)
			return res
		}
		res.Sent++

		var resp clickResponse
		if err := dec.Decode(&resp); err != nil {
			res.Err = fmt.Errorf("read decision: %w", err)
			return res
		}
		if resp.Success {
			res.Accepted++
			continue
		}
		res.Rejections[resp.Error]++
		switch resp.Error {
		case reasonRateExceeded, reasonInactive, reasonDisqualified:
			res.Disqualified = true
		}
		if cfg.Verbose {
			logger.Get().Debug(ctx, "click rejected", logger.String("user", p.UserID), logger.String("reason", resp.Error))
		}
	}
	return res
}
