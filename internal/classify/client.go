// Package classify sends chapter text to an external text-understanding
// service for speaker segmentation and entity resolution. It wraps the
// service call with an entity cache, a process-wide rate limit, bounded
// retry, and a pattern fallback so a failing service degrades results
// instead of failing the run.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtl-tools/mtlint/internal/lint"
)

// Service failure modes. Both are retried; once the retry budget is spent
// the caller degrades to pattern-based results.
var (
	ErrServiceUnavailable = errors.New("classification service unavailable")
	ErrMalformedResponse  = errors.New("malformed classification response")
)

// Client is a text-understanding backend. Complete sends one prompt and
// returns the raw reply text.
type Client interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewClient picks a backend by name. "auto" tries the Anthropic API first,
// then the Claude Code CLI, then a local Ollama daemon.
func NewClient(backend, ollamaURL, ollamaModel string) (Client, error) {
	switch backend {
	case "anthropic":
		if c := NewAnthropicClient(); c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("anthropic backend: ANTHROPIC_API_KEY not set")
	case "agent":
		if c := NewAgentClient(); c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("agent backend: claude CLI not found")
	case "ollama":
		return NewOllamaClient(ollamaURL, ollamaModel), nil
	case "", "auto":
		if c := NewAnthropicClient(); c != nil {
			return c, nil
		}
		if c := NewAgentClient(); c != nil {
			return c, nil
		}
		return NewOllamaClient(ollamaURL, ollamaModel), nil
	}
	return nil, fmt.Errorf("unknown classifier backend %q", backend)
}

// Request is one classification call: a passage plus the work to do on it.
type Request struct {
	// Text is the passage to classify, sentence-aligned by the chunker
	Text string

	// Context is the tail of the preceding passage. It rides along for
	// pronoun resolution and is not part of the passage itself.
	Context string

	// Segments asks for a dialogue/narration tiling of the passage
	Segments bool

	// Terms are candidate terms to rule on as possible obfuscated
	// real-world references
	Terms []string
}

// Verdict is the service's ruling on one candidate term.
type Verdict string

const (
	// VerdictObfuscated marks a deliberately altered real reference
	VerdictObfuscated Verdict = "obfuscated"
	// VerdictLegitimate marks a correctly rendered or purely fictional term
	VerdictLegitimate Verdict = "legitimate"
	// VerdictUnknown means the service could not decide
	VerdictUnknown Verdict = "unknown"
)

// Resolution is the parsed ruling for one term.
type Resolution struct {
	Term       string
	Verdict    Verdict
	Canonical  string
	Type       lint.EntityType
	Confidence float64
}

// Result is a validated reply for one Request. Segment spans are byte
// offsets into the request text.
type Result struct {
	Segments    []lint.Segment
	Resolutions []Resolution
}
