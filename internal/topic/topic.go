// Package topic supplies the rotating community topic prompt. Each community
// reset toggles between two prompt categories and draws a fresh starter from
// the matching pool.
package topic

import "math/rand"

// Category is the style of a topic prompt.
type Category string

const (
	// Deep prompts are reflective: identity, regrets, unspoken thoughts.
	Deep Category = "DEEP"
	// Playful prompts are light: curiosity, "what if", personal quirks.
	Playful Category = "PLAYFUL"
)

// Toggle returns the other category.
func (c Category) Toggle() Category {
	if c == Deep {
		return Playful
	}
	return Deep
}

var deepPrompts = []string{
	"Say something you won't remember tomorrow.",
	"What's been on your mind today?",
	"Say one thought without explaining it.",
	"What are you avoiding thinking about?",
	"Say something ordinary that feels heavy.",
	"What's a quiet thought you carry?",
	"What's something you didn't say today?",
	"What's taking more energy than it should?",
	"Say something unfinished.",
	"What feels unresolved right now?",
	"Say a thought you'd usually ignore.",
	"What are you carrying silently?",
	"What keeps your mind awake?",
	"What's easier to admit at night?",
	"Say something you usually hide.",
	"Say a thought you'd never post.",
	"What feels real only at night?",
	"Say something you're afraid to admit.",
}

var playfulPrompts = []string{
	"What's a talent nobody would guess you have?",
	"If today had a soundtrack, what would be playing?",
	"What if you could pause one moment from this week?",
	"What's the strangest habit you secretly enjoy?",
	"What would your pet say about you if it could talk?",
	"If you could rename yourself right now, what would it be?",
	"What's a tiny thing that made you smile today?",
	"What if tomorrow had one extra hour just for you?",
	"What's the most useless fact you know by heart?",
	"Which fictional place would you move to tonight?",
	"What's a food combination you defend with your life?",
	"If your mood were weather, what's the forecast?",
	"What's a small rule you love to break?",
	"What if you could hear one song for the first time again?",
}

// Provider draws topic prompts. Implementations must be safe for use from a
// single goroutine; the event loop is the only caller.
type Provider interface {
	Next(c Category) string
}

// PoolProvider serves prompts from the built-in pools.
type PoolProvider struct {
	rng *rand.Rand
}

// NewPoolProvider creates a PoolProvider seeded with src. A nil-safe seed is
// the caller's responsibility; the engine seeds from wall-clock time.
func NewPoolProvider(seed int64) *PoolProvider {
	return &PoolProvider{rng: rand.New(rand.NewSource(seed))}
}

// Next returns a random prompt from the category's pool.
func (p *PoolProvider) Next(c Category) string {
	pool := deepPrompts
	if c == Playful {
		pool = playfulPrompts
	}
	return pool[p.rng.Intn(len(pool))]
}
