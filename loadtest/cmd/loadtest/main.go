// Package main is the entry point for the GhostTalk load test binary. It
// connects a pool of simulated ghosts to the gateway, has each of them post
// community messages at a fixed rate, and measures the round trip from send
// to the client's own broadcast echo.
//
// Usage:
//
//	loadtest -url ws://localhost:8080/ws -conns 100 -duration 60s -rate 0.5
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumitkumar620290-cmd/GhostTalk/loadtest/client"
	"github.com/sumitkumar620290-cmd/GhostTalk/loadtest/stats"
)

func main() {
	fs := flag.NewFlagSet("loadtest", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket URL of the gateway")
	conns := fs.Int("conns", 100, "number of concurrent clients")
	duration := fs.Duration("duration", 60*time.Second, "test duration")
	rate := fs.Float64("rate", 0.5, "messages per second per client")
	ramp := fs.Duration("ramp", 10*time.Second, "ramp-up period for establishing connections")
	fs.Parse(os.Args[1:])

	if *rate <= 0 {
		fmt.Fprintln(os.Stderr, "rate must be positive")
		os.Exit(1)
	}

	log.Printf("loadtest: url=%s conns=%d duration=%s rate=%.2f/s", *url, *conns, *duration, *rate)

	collector := stats.NewCollector()
	ctx, cancel := context.WithTimeout(context.Background(), *duration+*ramp+10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	stagger := *ramp / time.Duration(*conns)

	for i := 0; i < *conns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			time.Sleep(time.Duration(idx) * stagger)
			runClient(ctx, *url, *rate, *duration, collector)
		}(i)
	}

	wg.Wait()
	collector.Report()
}

// runClient drives a single simulated ghost: connect, announce, then post
// community messages until the duration elapses. Echo latency is measured by
// matching the client-generated message id in the MESSAGE broadcast.
func runClient(ctx context.Context, url string, rate float64, duration time.Duration, collector *stats.Collector) {
	userID := uuid.NewString()
	username := fmt.Sprintf("ghost-%s", userID[:8])

	c, err := client.New(ctx, url, userID, username)
	if err != nil {
		collector.AddError()
		return
	}
	defer c.Close()

	var mu sync.Mutex
	sentAt := make(map[string]time.Time)

	c.On(client.TypeMessage, func(raw json.RawMessage) {
		var msg struct {
			Message struct {
				ID       string `json:"id"`
				SenderID string `json:"senderId"`
			} `json:"message"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		if msg.Message.SenderID != userID {
			return
		}
		mu.Lock()
		start, ok := sentAt[msg.Message.ID]
		if ok {
			delete(sentAt, msg.Message.ID)
		}
		mu.Unlock()
		if ok {
			collector.AddMsgLatency(time.Since(start))
		}
	})

	if err := c.Announce(); err != nil {
		collector.AddError()
		return
	}

	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	err = c.WaitForInit(initCtx)
	initCancel()
	if err != nil {
		collector.AddError()
		return
	}
	collector.AddConnect(c.GetMetrics().ConnectLatency)

	interval := time.Duration(float64(time.Second) / rate)
	// Jitter the first send so clients do not fire in lockstep.
	time.Sleep(time.Duration(rand.Int63n(int64(interval))))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.After(duration)

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			msgID := uuid.NewString()
			mu.Lock()
			sentAt[msgID] = time.Now()
			mu.Unlock()
			if err := c.SendCommunityMessage(msgID, "hello from the other side"); err != nil {
				collector.AddError()
				return
			}
		}
	}
}
