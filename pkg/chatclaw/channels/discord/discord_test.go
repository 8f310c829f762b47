package discord

import (
	"strings"
	"testing"
)

func TestSplitMessage(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := splitMessage("hello", 2000)
		if len(chunks) != 1 || chunks[0] != "hello" {
			t.Fatalf("unexpected chunks: %v", chunks)
		}
	})

	t.Run("chunks respect the limit", func(t *testing.T) {
		text := strings.Repeat("x", 4500)
		for _, chunk := range splitMessage(text, 2000) {
			if len(chunk) > 2000 {
				t.Fatalf("chunk too long: %d", len(chunk))
			}
		}
	})

	t.Run("nothing is lost", func(t *testing.T) {
		text := strings.Repeat("line of text\n", 400)
		if got := strings.Join(splitMessage(text, 2000), ""); got != text {
			t.Error("splitting must preserve the full text")
		}
	})

	t.Run("prefers newline boundaries", func(t *testing.T) {
		text := strings.Repeat("some words here\n", 300)
		chunks := splitMessage(text, 2000)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		if !strings.HasSuffix(chunks[0], "\n") {
			t.Errorf("first chunk should end at a newline, ends with %q", chunks[0][len(chunks[0])-10:])
		}
	})
}
