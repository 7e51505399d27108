package app

import (
	"context"
	"strings"
	"time"
)

// Assistant produces a streamed reply to a prompt as an ordered sequence of
// chunks. The transport behind a real provider is out of scope here; the
// core only depends on this shape.
type Assistant interface {
	Stream(ctx context.Context, model string, prompt string) <-chan string
}

// MockAssistant simulates a streaming provider so the chat flow can be
// exercised without a backend. Replies are canned per intent and emitted
// word by word.
type MockAssistant struct {
	// ChunkDelay paces emission; zero means as fast as possible (tests).
	ChunkDelay time.Duration
	Calls      int
}

func NewMockAssistant() *MockAssistant {
	return &MockAssistant{ChunkDelay: 25 * time.Millisecond}
}

func (a *MockAssistant) Stream(ctx context.Context, model string, prompt string) <-chan string {
	a.Calls++
	reply := a.generateReply(model, prompt)
	out := make(chan string)
	go func() {
		defer close(out)
		words := strings.SplitAfter(reply, " ")
		for _, w := range words {
			if a.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(a.ChunkDelay):
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- w:
			}
		}
	}()
	return out
}

func (a *MockAssistant) generateReply(model string, prompt string) string {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "hello") || strings.Contains(p, "hi"):
		return "Hello! I'm a mock " + model + " reply. Ask me about your code and I'll pretend convincingly."
	case strings.Contains(p, "bug") || strings.Contains(p, "error"):
		return "That looks like an off-by-one in the loop bounds. Check the end condition and add a regression test before fixing it."
	case strings.Contains(p, "test"):
		return "Start with a table-driven test over the public API. Cover the empty input and the largest input you expect in production."
	default:
		return "I can't reach a model from here, so this is a canned reply. Attach code snippets or files to give the real assistant context."
	}
}
