package moderation

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

// DefaultClassifyTimeout bounds the semantic call. Chat availability beats
// moderation strictness: a slow classifier degrades to Allowed.
const DefaultClassifyTimeout = 2 * time.Second

// Semantic is the remote half of the classifier: a stateless text review
// with no conversation context.
type Semantic interface {
	Classify(ctx context.Context, text string) (Category, error)
}

// Requester issues a request/reply round trip, e.g. over NATS.
type Requester interface {
	Request(subject string, data []byte, timeout time.Duration) ([]byte, error)
}

// SubjectClassify is the NATS subject served by the moderator service.
const SubjectClassify = "moderation.classify"

// RemoteSemantic asks the moderator service over NATS.
type RemoteSemantic struct {
	req     Requester
	timeout time.Duration
}

// NewRemoteSemantic builds a RemoteSemantic with the given request timeout;
// zero means DefaultClassifyTimeout.
func NewRemoteSemantic(req Requester, timeout time.Duration) *RemoteSemantic {
	if timeout <= 0 {
		timeout = DefaultClassifyTimeout
	}
	return &RemoteSemantic{req: req, timeout: timeout}
}

// Classify sends the text to the moderator service and parses its reply.
func (r *RemoteSemantic) Classify(ctx context.Context, text string) (Category, error) {
	payload, err := json.Marshal(ClassifyRequest{Text: text})
	if err != nil {
		return Allowed, err
	}
	reply, err := r.req.Request(SubjectClassify, payload, r.timeout)
	if err != nil {
		return Allowed, err
	}
	var res ClassifyResult
	if err := json.Unmarshal(reply, &res); err != nil {
		return Allowed, err
	}
	return ParseCategory(res.Category), nil
}

// Pipeline is the full classifier contract: the deterministic severe-pattern
// prefilter runs first and fails closed; the semantic call runs second and
// fails open.
type Pipeline struct {
	semantic Semantic
}

// NewPipeline builds a classifier pipeline around a semantic backend. A nil
// backend degrades to prefilter-only classification.
func NewPipeline(semantic Semantic) *Pipeline {
	return &Pipeline{semantic: semantic}
}

// Classify returns the category for text. It never returns an error: severe
// pattern matches are Blocked regardless of classifier availability, and
// semantic failures are logged and degrade to Allowed.
func (p *Pipeline) Classify(ctx context.Context, text string) Category {
	if MatchesSevere(text) {
		return Blocked
	}
	if p.semantic == nil {
		return Allowed
	}
	cat, err := p.semantic.Classify(ctx, text)
	if err != nil {
		log.Printf("[moderation] semantic classify failed (failing open): %v", err)
		return Allowed
	}
	return cat
}
