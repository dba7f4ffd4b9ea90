package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerWithServiceStampsEveryEntry(t *testing.T) {
	logger := NewLoggerWithService("nostalgickr")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.WithField("request_id", "abc").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "nostalgickr" {
		t.Fatalf("expected service field on entry, got %v", entry["service"])
	}
	if entry["request_id"] != "abc" {
		t.Fatalf("expected caller fields to survive, got %v", entry["request_id"])
	}
}
