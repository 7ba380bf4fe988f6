package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, nil)
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Info(ctx, "authentication succeeded", "user", "anna")
	log.Warn(ctx, "registration rejected", "reason", "challenge expired")
	log.Error(ctx, "identity lookup failed", "error", "db down")

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"INFO", "authentication succeeded", "user=anna"},
		{"WARN", "registration rejected", `reason="challenge expired"`},
		{"ERROR", "identity lookup failed", `error="db down"`},
	}
	for _, tc := range tests {
		if !strings.Contains(out, "level="+tc.level) {
			t.Fatalf("expected line with level=%s in output:\n%s", tc.level, out)
		}
		if !strings.Contains(out, tc.msg) {
			t.Fatalf("expected message %q in output:\n%s", tc.msg, out)
		}
		if !strings.Contains(out, tc.attr) {
			t.Fatalf("expected attribute %s in output:\n%s", tc.attr, out)
		}
	}
}

func TestSlogLogger_WithAddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	child := log.With("component", "credential-authority", "rp_id", "vault.example.com")
	child.Info(ctx, "challenge issued", "purpose", "registration")

	out := buf.String()
	for _, s := range []string{
		"level=INFO",
		"challenge issued",
		"component=credential-authority",
		"rp_id=vault.example.com",
		"purpose=registration",
	} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output, got:\n%s", s, out)
		}
	}
}

func TestSlogLogger_WithDoesNotAffectParent(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	_ = log.With("component", "http_server")
	log.Info(ctx, "plain record")

	if strings.Contains(buf.String(), "component=") {
		t.Fatalf("parent logger picked up child attributes:\n%s", buf.String())
	}
}
