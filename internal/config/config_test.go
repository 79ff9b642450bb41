package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zhouzirui/adventure-chat/backend/internal/storage"
)

func TestNormalizeAddr(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ":8080"},
		{in: "9090", want: ":9090"},
		{in: ":7000", want: ":7000"},
		{in: "127.0.0.1:8081", want: "127.0.0.1:8081"},
		{in: "80 80", wantErr: true},
	}

	for _, tc := range cases {
		got, err := normalizeAddr(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("normalizeAddr(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("normalizeAddr(%q) err: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE_DRIVER", "Pebble")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Chat.SnapshotKey != "savedChatHistoryApp" {
		t.Fatalf("unexpected snapshot key %q", cfg.Chat.SnapshotKey)
	}
	if cfg.Chat.EchoDelay != 500*time.Millisecond {
		t.Fatalf("unexpected echo delay %v", cfg.Chat.EchoDelay)
	}
	if got := cfg.Storage.Options().Driver; got != storage.DriverPebble {
		t.Fatalf("unexpected driver %q", got)
	}

	catalog, err := cfg.Background.Catalog()
	if err != nil {
		t.Fatalf("Catalog err: %v", err)
	}
	if catalog.Len() != 5 {
		t.Fatalf("expected built-in catalog of 5, got %d", catalog.Len())
	}
}

func TestLoadBackgroundLists(t *testing.T) {
	t.Setenv("BACKGROUND_PATHS", "/a.jpg;/b.jpg")
	t.Setenv("BACKGROUND_GRADIENTS", "linear-gradient(135deg, #000 0%, #111 100%);linear-gradient(135deg, #222 0%, #333 100%)")
	t.Setenv("BACKGROUND_LABELS", "Alley")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	catalog, err := cfg.Background.Catalog()
	if err != nil {
		t.Fatalf("Catalog err: %v", err)
	}
	second, ok := catalog.At(1)
	if !ok || second.Path != "/b.jpg" || second.Label != "Background 2" {
		t.Fatalf("unexpected second asset %+v", second)
	}
}

func TestLoadRejectsMismatchedBackgrounds(t *testing.T) {
	t.Setenv("BACKGROUND_PATHS", "/a.jpg;/b.jpg")
	t.Setenv("BACKGROUND_GRADIENTS", "linear-gradient(135deg, #000 0%, #111 100%)")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for mismatched lists")
	}
}

func TestLoadSamplingOverrides(t *testing.T) {
	t.Setenv("ARK_TEMPERATURE", "0.3")
	t.Setenv("ARK_MAX_TOKENS", "512")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.AI.Temperature == nil || *cfg.AI.Temperature != 0.3 {
		t.Fatalf("unexpected temperature %v", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens == nil || *cfg.AI.MaxTokens != 512 {
		t.Fatalf("unexpected max tokens %v", cfg.AI.MaxTokens)
	}
	if cfg.AI.TopP != nil {
		t.Fatalf("expected unset top_p, got %v", *cfg.AI.TopP)
	}

	t.Setenv("ARK_TEMPERATURE", "warm")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid temperature")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{Model: "m"}).Enabled() {
		t.Fatal("model alone should not enable AI")
	}
	if !(AIConfig{Model: "m", APIKey: "k"}).Enabled() {
		t.Fatal("model + api key should enable AI")
	}
	if !(AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Fatal("model + AK/SK should enable AI")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: \"7070\"\nstorage:\n  driver: memory\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "memory" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected sections %+v %+v", cfg.Storage, cfg.Log)
	}
}
