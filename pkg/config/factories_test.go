package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewRegistry_NativeFormatsOnly(t *testing.T) {
	cfg := GetDefaultConfig()

	registry, err := NewRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	formats := registry.Formats()
	if len(formats) != 2 {
		t.Fatalf("Expected 2 native formats, got %d", len(formats))
	}
	if _, ok := registry.Match("s3://bucket/survey.pik1"); !ok {
		// The pik1 glob still matches the base name even without the
		// s3 format registered.
		t.Error("Expected base-name match for remote-looking path")
	}
}

func TestNewRegistry_RemoteRegistersS3(t *testing.T) {
	// Isolate from the host environment: an ambient AWS_CA_BUNDLE makes
	// LoadDefaultConfig reject the plain *http.Client used for timeouts.
	t.Setenv("AWS_CA_BUNDLE", "")

	cfg := GetDefaultConfig()
	cfg.Remote.Enabled = true
	cfg.Remote.Region = "us-east-1"
	cfg.Remote.Bucket = "surveys"
	cfg.Remote.Endpoint = "http://localhost:9000"
	cfg.Remote.AccessKeyID = "test"
	cfg.Remote.SecretAccessKey = "test"

	registry, err := NewRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	f, ok := registry.Match("s3://surveys/2019/")
	if !ok {
		t.Fatal("Expected s3:// URL to match a format")
	}
	if f.Name != "s3" {
		t.Errorf("Expected s3 format, got %q", f.Name)
	}

	// The scheme wins over base-name globs for remote paths.
	f, ok = registry.Match("s3://surveys/2019/survey.pik1")
	if !ok || f.Name != "s3" {
		t.Errorf("Expected s3 format for remote pik1 URL, got %q", f.Name)
	}
}

func TestOpenHistory_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.History.Enabled = false

	store, err := OpenHistory(cfg)
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	if store != nil {
		t.Error("Expected nil store when history is disabled")
	}
}

func TestOpenHistory_CreatesDirectory(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.History.Path = filepath.Join(t.TempDir(), "nested", "history")

	store, err := OpenHistory(cfg)
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(cfg.History.Path); err != nil {
		t.Errorf("Expected history directory to exist: %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("No home directory: %v", err)
	}

	got := expandHome("~/.firn/history")
	want := filepath.Join(home, ".firn", "history")
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	if got := expandHome("/var/lib/firn"); got != "/var/lib/firn" {
		t.Errorf("Expected absolute path unchanged, got %q", got)
	}
}
