package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/audit"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/community"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/engine"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/messaging"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/moderation"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/presence"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/ratelimit"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/room"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/topic"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/ws"
)

// wsSender adapts the WebSocket server to the engine's Sender interface.
type wsSender struct {
	server *ws.Server
}

func (s *wsSender) Send(connID string, data []byte) error {
	return s.server.SendMessage(connID, data)
}

func (s *wsSender) Broadcast(data []byte) {
	s.server.Connections().Broadcast(data)
}

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	// --- NATS: semantic moderation backend ---
	// The gateway runs without it; classification then degrades to the
	// local prefilter with fail-open semantics.
	var semantic moderation.Semantic
	var natsClient *messaging.NATSClient
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	nc, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Printf("NATS unavailable, moderation degrades to prefilter: %v", err)
	} else {
		natsClient = nc
		semantic = moderation.NewRemoteSemantic(nc, moderation.DefaultClassifyTimeout)
	}

	// --- Redis: rate limiting ---
	var limiter *ratelimit.Limiter
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("Redis unavailable, rate limiting disabled: %v", err)
		rdb.Close()
		rdb = nil
	} else {
		limiter = ratelimit.NewLimiter(rdb)
	}
	cancel()

	// --- PostgreSQL: moderation audit trail ---
	var auditor *audit.Store
	if dsn := os.Getenv("AUDIT_DSN"); dsn != "" {
		auditor, err = audit.Open(dsn)
		if err != nil {
			log.Fatalf("failed to open audit store: %v", err)
		}
	} else {
		log.Printf("AUDIT_DSN not set, moderation audit trail disabled")
	}

	seed := time.Now().UnixNano()
	users := presence.NewRegistry()
	rooms := room.NewRegistry()
	comm := community.New(time.Now(), topic.NewPoolProvider(seed), seed)
	gate := moderation.NewGate(moderation.NewPipeline(semantic), users)

	dispatcher := ws.NewMessageDispatcher(nil)
	server := ws.NewServer(config, dispatcher.Dispatch)
	dispatcher.SetServer(server)

	core := engine.New(engine.Config{
		Sender:    &wsSender{server: server},
		Users:     users,
		Rooms:     rooms,
		Community: comm,
		Gate:      gate,
		Limiter:   limiter,
		Auditor:   auditor,
	})

	dispatcher.Register(protocol.TypeHeartbeat, func(conn *ws.Connection, msg interface{}) {
		if m, ok := msg.(protocol.HeartbeatMsg); ok {
			core.Heartbeat(conn.ID, m)
		}
	})
	dispatcher.Register(protocol.TypeMessage, func(conn *ws.Connection, msg interface{}) {
		if m, ok := msg.(protocol.ChatMsg); ok {
			core.Message(conn.ID, m)
		}
	})
	dispatcher.Register(protocol.TypeChatRequest, func(conn *ws.Connection, msg interface{}) {
		if m, ok := msg.(protocol.ChatRequestMsg); ok {
			core.ChatRequest(conn.ID, m)
		}
	})
	dispatcher.Register(protocol.TypeChatAccept, func(conn *ws.Connection, msg interface{}) {
		if m, ok := msg.(protocol.ChatAcceptMsg); ok {
			core.ChatAccept(conn.ID, m)
		}
	})
	dispatcher.Register(protocol.TypeChatExit, func(conn *ws.Connection, msg interface{}) {
		if m, ok := msg.(protocol.ChatExitMsg); ok {
			core.ChatExit(conn.ID, m)
		}
	})
	dispatcher.Register(protocol.TypeExtensionDecision, func(conn *ws.Connection, msg interface{}) {
		if m, ok := msg.(protocol.ExtensionDecisionMsg); ok {
			core.ExtensionDecision(conn.ID, m)
		}
	})
	dispatcher.Register(protocol.TypeChatRejoin, func(conn *ws.Connection, msg interface{}) {
		if m, ok := msg.(protocol.ChatRejoinMsg); ok {
			core.ChatRejoin(conn.ID, m)
		}
	})

	server.SetOnConnect(func(conn *ws.Connection) { core.OnConnect(conn.ID) })
	server.SetOnDisconnect(core.OnDisconnect)
	if limiter != nil {
		server.SetConnectGate(core.AllowConnect)
	}

	log.Printf("GhostTalk gateway starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)

	core.Start()

	// Run the server; block until a shutdown signal arrives.
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down...", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("server error: %v", err)
		}
	}

	core.Stop()
	if err := server.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if natsClient != nil {
		natsClient.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
	if auditor != nil {
		if err := auditor.Close(); err != nil {
			log.Printf("audit close error: %v", err)
		}
	}
}
