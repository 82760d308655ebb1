package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"access_token", "abc", "retro_id", "r1", "JWT_SECRET_KEY", "s", "dangling"})
	if len(out) != 7 {
		t.Fatalf("unexpected length %d: %v", len(out), out)
	}
	if out[1] != "[REDACTED]" || out[5] != "[REDACTED]" {
		t.Fatalf("expected token and secret to be redacted: %v", out)
	}
	if out[3] != "r1" {
		t.Fatalf("non-sensitive values must pass through: %v", out)
	}
	if out[6] != "dangling" {
		t.Fatalf("odd trailing key should be kept: %v", out)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production", "test", ""} {
		log, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		log.With("component", "test").Debug("hello", "k", "v")
	}
	Nop().Info("discarded")
}
