package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"deepgraph/internal/llm"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens returns the token count of text under the cl100k_base
// encoding, falling back to a bytes/4 heuristic if the encoding cannot be
// loaded. Used for prompt-size logging, never for billing.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// CountMessageTokens approximates the token footprint of a message list.
func CountMessageTokens(messages []llm.Message) int {
	total := 0
	for _, m := range messages {
		// Per-message framing overhead.
		total += 4 + CountTokens(m.Content)
	}
	return total
}
