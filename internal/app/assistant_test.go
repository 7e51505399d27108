package app

import (
	"context"
	"strings"
	"testing"
)

func TestMockAssistant_StreamAssembles(t *testing.T) {
	a := NewMockAssistant()
	a.ChunkDelay = 0

	var b strings.Builder
	for chunk := range a.Stream(context.Background(), "gpt-x", "hello") {
		b.WriteString(chunk)
	}
	got := b.String()
	if !strings.Contains(got, "Hello") {
		t.Fatalf("assembled reply = %q", got)
	}
	if a.Calls != 1 {
		t.Fatalf("calls = %d, want 1", a.Calls)
	}
}

func TestMockAssistant_CancelStopsStream(t *testing.T) {
	a := NewMockAssistant()
	a.ChunkDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	ch := a.Stream(ctx, "gpt-x", "tell me about tests")

	// Take one chunk, then cancel; the channel must close.
	<-ch
	cancel()
	for range ch {
	}
}
