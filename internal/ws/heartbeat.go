package ws

import (
	"log"
	"time"

	"github.com/gobwas/ws"
)

// LivenessConfig tunes the stale-connection sweep.
type LivenessConfig struct {
	// PingInterval is how often every connection is pinged.
	PingInterval time.Duration
	// PongGrace is the extra slack a peer gets to show activity after a
	// ping before it is declared dead.
	PongGrace time.Duration
}

// DefaultLivenessConfig returns the sweep defaults.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		PingInterval: 30 * time.Second,
		PongGrace:    10 * time.Second,
	}
}

// startLiveness launches the sweep goroutine. Each pass evicts connections
// with no read activity inside PingInterval+PongGrace and pings the rest.
// The goroutine exits with the server's done channel.
func (s *Server) startLiveness(cfg LivenessConfig) {
	go func() {
		ticker := time.NewTicker(cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.sweepStale(cfg)
			}
		}
	}()
}

// sweepStale walks every connection once. Ghosts linger in the browser for
// hours; the protocol-level ping (opcode 0x9) keeps idle tabs alive because
// browsers answer it without application code.
func (s *Server) sweepStale(cfg LivenessConfig) {
	cutoff := cfg.PingInterval + cfg.PongGrace
	now := time.Now()

	for _, c := range s.Connections().All() {
		idle := now.Sub(c.LastPing)
		if idle > cutoff {
			log.Printf("ws: liveness evict conn=%s idle=%s", c.ID, idle.Round(time.Second))
			s.RemoveConnection(c)
			continue
		}
		if err := c.WritePing(); err != nil {
			log.Printf("ws: liveness ping failed conn=%s: %v", c.ID, err)
			s.RemoveConnection(c)
		}
	}
}

// WritePing sends a protocol-level ping frame. The write mutex keeps it from
// interleaving with application frames.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}
