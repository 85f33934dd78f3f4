package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestWithContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, JobIDKey, "task-9")
	log.WithContext(ctx).Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["request_id"] != "req-1" || record["job_id"] != "task-9" {
		t.Fatalf("expected request and job ids, got %v", record)
	}
	if _, ok := record["user_id"]; ok {
		t.Fatalf("expected no user_id, got %v", record["user_id"])
	}
}

func TestJobSummaryWarnsOnErrors(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("production", &buf).JobSummary("decay", 10, 3, 2, false, time.Second)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["level"] != "WARN" {
		t.Fatalf("expected WARN, got %v", record["level"])
	}
	if record["errors"] != float64(2) {
		t.Fatalf("expected 2 errors, got %v", record["errors"])
	}
}

func TestDevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("development", &buf).Debug("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("expected debug output in development, got %q", buf.String())
	}
}
