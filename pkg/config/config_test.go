package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"github.com/torqfin/messaging-core/internal/testutil"
)

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	data := []byte("domain: signal\ntransport: tcp\nbind: 127.0.0.1:7001\n" +
		"validation:\n  checksum: true\n  strict: true\n  max_message_size: 65536\n" +
		"topic:\n  strategy: fixed\n  fixed_topic: sig\n" +
		"queue:\n  capacity: 1024\n  high_watermark: 768\n  low_watermark: 256\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Domain != "signal" {
		t.Fatalf("expected domain signal, got %q", cfg.Domain)
	}
	if !cfg.Validation.Checksum || !cfg.Validation.Strict {
		t.Fatalf("expected checksum and strict validation enabled")
	}
	if cfg.Topic.Strategy != "fixed" || cfg.Topic.FixedTopic != "sig" {
		t.Fatalf("unexpected topic config: %+v", cfg.Topic)
	}
}

func TestLoadConfigOverride(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	base := []byte("domain: market_data\nqueue:\n  capacity: 1024\n")
	override := []byte("queue:\n  capacity: 4096\n")
	if err := sb.WriteFile("config/default.yaml", base, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := sb.WriteFile("config/prod.yaml", override, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	cfg, err := Load("prod")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Queue.Capacity != 4096 {
		t.Fatalf("expected override capacity 4096, got %d", cfg.Queue.Capacity)
	}
	if cfg.Domain != "market_data" {
		t.Fatalf("expected base domain to survive merge, got %q", cfg.Domain)
	}
}
