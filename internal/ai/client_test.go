package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/config"
)

func TestDisabledWithoutKey(t *testing.T) {
	c := New(config.AIConfig{Model: "gpt-4o-mini"}, zap.NewNop())
	if c.Enabled() {
		t.Fatal("client should be disabled with no API key")
	}
	_, err := c.Ask(context.Background(), "hello")
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestSanitizeHidesKey(t *testing.T) {
	c := New(config.AIConfig{APIKey: "sk-super-secret", Model: "gpt-4o-mini"}, zap.NewNop())
	out := c.sanitize("401 unauthorized: bad key sk-super-secret provided")
	if strings.Contains(out, "sk-super-secret") {
		t.Fatalf("sanitized output still contains the key: %q", out)
	}
	if !strings.Contains(out, "***") {
		t.Fatalf("sanitized output missing the mask: %q", out)
	}
}
