package util

import (
	"strings"
	"testing"
)

func TestDisplaySnippet(t *testing.T) {
	in := "Hello\x00   world \n\t x"
	out := DisplaySnippet(in, 100)
	if out == "" {
		t.Fatalf("expected non-empty snippet")
	}
}

func TestDisplayEvidenceSnippet(t *testing.T) {
	chunk := "The contractor maintains fall protection anchor points. Workers exposed to falls over six feet use harnesses. Unrelated appendix text."
	q := "What fall protection harness requirements apply?"
	out := DisplayEvidenceSnippet(chunk, q, 200)
	if !strings.Contains(strings.ToLower(out), "harness") {
		t.Fatalf("expected relevance to harness in snippet, got: %q", out)
	}
}
