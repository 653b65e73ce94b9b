package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/messaging"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/moderation"
)

// The moderator service answers classification requests from the gateway
// over NATS request/reply. It layers the severe prefilter over the keyword
// and spam filter and maps their results to a category. The gateway fails
// open if this service is down.
func main() {
	log.Println("Starting GhostTalk moderation service...")

	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "ghosttalk-moderator"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	filter := moderation.NewFilter()

	err = natsClient.Serve(moderation.SubjectClassify, func(data []byte) []byte {
		var req moderation.ClassifyRequest
		if err := json.Unmarshal(data, &req); err != nil {
			log.Printf("[moderator] failed to unmarshal request: %v", err)
			return mustResult(moderation.Allowed)
		}

		category := classify(filter, req.Text)
		if category != moderation.Allowed {
			result := filter.Check(req.Text)
			log.Printf("[moderator] %s reason=%s term=%q", category, result.Reason, result.Term)
		}
		return mustResult(category)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to classify requests: %v", err)
	}

	log.Printf("GhostTalk moderation service running")
	log.Printf("  nats_url: %s", natsConfig.URL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
}

// classify maps the prefilter and keyword filter onto a wire category. The
// severe prefilter dominates everything else.
func classify(filter *moderation.Filter, text string) moderation.Category {
	if moderation.MatchesSevere(text) {
		return moderation.Blocked
	}
	return filter.Check(text).Category
}

func mustResult(category moderation.Category) []byte {
	data, err := json.Marshal(moderation.ClassifyResult{Category: string(category)})
	if err != nil {
		// The struct is a single string field; this cannot fail.
		return []byte(`{"category":"ALLOWED"}`)
	}
	return data
}
