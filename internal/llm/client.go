// Package llm is the boundary to the text-completion service. The core
// pipeline only ever sees the Client interface; correctness tests run
// against deterministic stubs instead of a live provider.
package llm

import "context"

// Params are the generation knobs a single completion call accepts.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Client issues one prompt and returns one completion, or an explicit
// failure. No streaming, no retries.
type Client interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}
