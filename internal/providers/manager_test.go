package providers

import (
	"testing"

	"safeplan/internal/config"
)

func TestHasLiveLLM(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SAFEPLAN_LLM_PROVIDERS", "gemini")
	m, err := NewManager(config.Load())
	if err != nil {
		t.Fatal(err)
	}
	if m.HasLiveLLM() {
		t.Fatal("gemini without a key should not count as live")
	}

	t.Setenv("SAFEPLAN_LLM_PROVIDERS", "mock")
	m, err = NewManager(config.Load())
	if err != nil {
		t.Fatal(err)
	}
	if !m.HasLiveLLM() {
		t.Fatal("explicitly configured mock provider should count as live")
	}
}

func TestHasLiveLLMDefaultedMockFailsClosed(t *testing.T) {
	t.Setenv("SAFEPLAN_LLM_PROVIDERS", "")
	m, err := NewManager(config.Load())
	if err != nil {
		t.Fatal(err)
	}
	if m.HasLiveLLM() {
		t.Fatal("mock inherited from the config default should not count as live")
	}
}
