package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)
	log.Info("sale committed", "sale_id", "sale-1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if line["sale_id"] != "sale-1" {
		t.Fatalf("expected sale_id attr, got %v", line)
	}
}

func TestDevelopmentLoggerWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)
	log.Debug("cache miss", "shopkeeper_id", "shop-1")

	if !strings.Contains(buf.String(), "shopkeeper_id=shop-1") {
		t.Fatalf("expected text attrs, got %q", buf.String())
	}
}
