package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf, Level: zerolog.InfoLevel})

	ctx := logg.WithRequestID(context.Background(), "req-123")
	ctx = logg.WithUserID(ctx, "user-456")
	logg.Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("request_id missing: %v", entry)
	}
	if entry["user_id"] != "user-456" {
		t.Fatalf("user_id missing: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("service missing: %v", entry)
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if ParseLevel("nonsense") != zerolog.InfoLevel {
		t.Fatal("unknown level should fall back to info")
	}
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatal("debug should parse")
	}
}
