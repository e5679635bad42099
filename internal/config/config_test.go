package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/tfcache/internal/ingress"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.CacheDuration == nil || *cfg.CacheDuration != "10s" {
		t.Errorf("Expected CacheDuration '10s', got %v", cfg.CacheDuration)
	}
	if cfg.Listen == nil || *cfg.Listen != ":8082" {
		t.Errorf("Expected Listen ':8082', got %v", cfg.Listen)
	}
	if cfg.Source == nil || *cfg.Source != SourceStdin {
		t.Errorf("Expected Source 'stdin', got %v", cfg.Source)
	}

	if cfg.GetCacheDuration() != 10*time.Second {
		t.Errorf("GetCacheDuration() = %v, want 10s", cfg.GetCacheDuration())
	}
	if cfg.GetLogInterval() != 10*time.Second {
		t.Errorf("GetLogInterval() = %v, want 10s", cfg.GetLogInterval())
	}
	if cfg.GetEchoInterval() != time.Second {
		t.Errorf("GetEchoInterval() = %v, want 1s", cfg.GetEchoInterval())
	}
	if cfg.GetSerialBaud() != 115200 {
		t.Errorf("GetSerialBaud() = %d, want 115200", cfg.GetSerialBaud())
	}
	if cfg.GetRecord() {
		t.Error("GetRecord() = true, want false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, "tf.json", `{
  "cache_duration": "2s",
  "static_pairs": [{"parent": "base_link", "child": "laser"}],
  "listen": ":9000",
  "record": true,
  "source": "udp",
  "udp_addr": "127.0.0.1:7000"
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetCacheDuration() != 2*time.Second {
		t.Errorf("GetCacheDuration() = %v, want 2s", cfg.GetCacheDuration())
	}
	if cfg.GetListen() != ":9000" {
		t.Errorf("GetListen() = %q, want :9000", cfg.GetListen())
	}
	if !cfg.GetRecord() {
		t.Error("GetRecord() = false, want true")
	}
	if cfg.GetSource() != SourceUDP || cfg.GetUDPAddr() != "127.0.0.1:7000" {
		t.Errorf("source = %q at %q", cfg.GetSource(), cfg.GetUDPAddr())
	}

	want := tfbuffer.Options{
		CacheDuration: 2 * time.Second,
		StaticPairs:   []tfbuffer.Pair{{Parent: "base_link", Child: "laser"}},
	}
	if diff := cmp.Diff(want, cfg.BufferOptions()); diff != "" {
		t.Errorf("BufferOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "tf.yaml", `
cache_duration: 30s
static_pairs:
  - parent: base_link
    child: imu
  - parent: base_link
    child: camera
source: pcap
pcap_file: capture.pcap
pcap_port: 2368
echo_parent: odom
echo_child: base_link
echo_interval: 250ms
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetCacheDuration() != 30*time.Second {
		t.Errorf("GetCacheDuration() = %v, want 30s", cfg.GetCacheDuration())
	}
	if cfg.GetPCAPFile() != "capture.pcap" || cfg.GetPCAPPort() != 2368 {
		t.Errorf("pcap = %q:%d", cfg.GetPCAPFile(), cfg.GetPCAPPort())
	}
	if cfg.GetEchoParent() != "odom" || cfg.GetEchoChild() != "base_link" {
		t.Errorf("echo pair = %s -> %s", cfg.GetEchoParent(), cfg.GetEchoChild())
	}
	if cfg.GetEchoInterval() != 250*time.Millisecond {
		t.Errorf("GetEchoInterval() = %v, want 250ms", cfg.GetEchoInterval())
	}

	want := []tfbuffer.Pair{
		{Parent: "base_link", Child: "imu"},
		{Parent: "base_link", Child: "camera"},
	}
	if diff := cmp.Diff(want, cfg.GetStaticPairs()); diff != "" {
		t.Errorf("GetStaticPairs() mismatch (-want +got):\n%s", diff)
	}

	// Unset fields fall back to defaults
	if cfg.GetListen() != ":8082" {
		t.Errorf("GetListen() = %q, want :8082", cfg.GetListen())
	}
	if cfg.GetDBPath() != "" {
		t.Errorf("GetDBPath() = %q, want empty", cfg.GetDBPath())
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"bad extension", "tf.toml", `cache_duration = "1s"`, "extension"},
		{"bad json", "tf.json", `{"cache_duration": `, "parse config JSON"},
		{"bad yaml", "tf.yaml", "static_pairs: [", "parse config YAML"},
		{"bad duration", "tf.json", `{"cache_duration": "soon"}`, "invalid cache_duration"},
		{"negative duration", "tf.json", `{"log_interval": "-1s"}`, "non-negative"},
		{"unknown source", "tf.json", `{"source": "carrier-pigeon"}`, "Source"},
		{"bad baud", "tf.json", `{"serial_baud": 0}`, "SerialBaud"},
		{"port out of range", "tf.json", `{"pcap_port": 70000}`, "PCAPPort"},
		{"static pair missing child", "tf.json", `{"static_pairs": [{"parent": "a"}]}`, "Child"},
		{"static pair self loop", "tf.json", `{"static_pairs": [{"parent": "a", "child": "a"}]}`, "Child"},
		{"pcap without file", "tf.json", `{"source": "pcap"}`, "requires pcap_file"},
		{"serial without port", "tf.json", `{"source": "serial", "serial_port": ""}`, "requires serial_port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "stat config file") {
		t.Errorf("expected stat error, got %v", err)
	}
}

func TestLoadConfig_TooLarge(t *testing.T) {
	body := `{"listen": "` + strings.Repeat("x", maxFileSize) + `"}`
	path := writeConfig(t, "big.json", body)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestEmptyConfigGetters(t *testing.T) {
	cfg := &Config{}

	if cfg.GetCacheDuration() != tfbuffer.DefaultCacheDuration {
		t.Errorf("GetCacheDuration() = %v", cfg.GetCacheDuration())
	}
	if cfg.GetSource() != SourceStdin {
		t.Errorf("GetSource() = %q", cfg.GetSource())
	}
	if cfg.GetPCAPPort() != 9870 {
		t.Errorf("GetPCAPPort() = %d", cfg.GetPCAPPort())
	}
	if cfg.GetDebug() {
		t.Error("GetDebug() = true")
	}
	if len(cfg.GetStaticPairs()) != 0 {
		t.Errorf("GetStaticPairs() = %v", cfg.GetStaticPairs())
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	if len(cfg.GetStaticPairs()) == 0 {
		t.Error("example config should list static pairs")
	}
}

func TestIngressSource(t *testing.T) {
	cfg := &Config{Source: ptrString(SourcePCAP), PCAPFile: ptrString("run.pcap")}
	want := ingress.SourceConfig{
		Kind:       ingress.KindPCAP,
		SerialPort: "/dev/ttyUSB0",
		SerialBaud: 115200,
		UDPAddr:    ":9870",
		PCAPFile:   "run.pcap",
		PCAPPort:   9870,
	}
	if diff := cmp.Diff(want, cfg.IngressSource()); diff != "" {
		t.Errorf("IngressSource() mismatch (-want +got):\n%s", diff)
	}
}
