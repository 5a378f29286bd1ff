package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager_ModuleCaching(t *testing.T) {
	mgr, err := NewManager(Config{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	a := mgr.GetLogger("querycache")
	b := mgr.GetLogger("querycache")
	if a != b {
		t.Error("GetLogger() should return the cached instance for the same module")
	}

	c := mgr.GetLogger("jobboard")
	if a == c {
		t.Error("different modules must get different loggers")
	}
}

func TestNewManager_InvalidLevelFallsBack(t *testing.T) {
	mgr, err := NewManager(Config{Level: "nonsense"})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if mgr.GetLogger("x") == nil {
		t.Error("GetLogger() = nil")
	}
}

func TestManager_FileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	mgr, err := NewManager(Config{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	log := mgr.GetLogger("querycache")
	log.Info("hello from file sink")
	mgr.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "hello from file sink") {
		t.Errorf("log file missing record, got: %s", data)
	}
	if !strings.Contains(string(data), `"module":"querycache"`) {
		t.Errorf("module field missing, got: %s", data)
	}
}

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abc-123")
	if got := TraceIDFromContext(ctx); got != "abc-123" {
		t.Errorf("TraceIDFromContext() = %q, want abc-123", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("TraceIDFromContext(empty) = %q, want empty", got)
	}
}

func TestGetLogger_LazyDefault(t *testing.T) {
	// Global access works without Init
	log := GetLogger("lazy")
	if log == nil {
		t.Fatal("GetLogger() = nil")
	}
	log.Debug("no-op under default info level")
}
