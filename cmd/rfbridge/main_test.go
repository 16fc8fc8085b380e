package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// TestRun_InvalidConfig verifies run fails with a missing config file.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_CancelledStopsCleanly runs the bridge with the stub driver and
// cancels it once it is up.
func TestRun_CancelledStopsCleanly(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
device:
  id: test-bridge
network:
  interface: "lo-does-not-exist"
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
rf:
  driver: stub
discovery:
  enabled: false
update:
  enabled: false
database:
  path: "` + filepath.Join(dir, "rfbridge.db") + `"
logging:
  level: error
  format: text
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := run(ctx, configPath)
	if err != nil {
		t.Fatalf("run() error = %v, want nil after cancellation", err)
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("RFBRIDGE_CONFIG", "")
	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Errorf("resolveConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("RFBRIDGE_CONFIG", "/etc/rfbridge/env.yaml")
	if got := resolveConfigPath(""); got != "/etc/rfbridge/env.yaml" {
		t.Errorf("resolveConfigPath() = %q, want env path", got)
	}
	if got := resolveConfigPath("/tmp/flag.yaml"); got != "/tmp/flag.yaml" {
		t.Errorf("resolveConfigPath() = %q, want flag path", got)
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"on", true, false},
		{"ON", true, false},
		{"1", true, false},
		{"off", false, false},
		{"false", false, false},
		{"toggle", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseState(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseState(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseState(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"encode", "11111", "11111", "on"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("encode error = %v", err)
	}
	if !strings.Contains(out.String(), "code=1 bits=24") {
		t.Errorf("output = %q, want code=1 bits=24", out.String())
	}
}

func TestEncodeCommand_InvalidAddress(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"encode", "1a111", "11111", "on"})

	if err := cmd.Execute(); err == nil {
		t.Error("encode with invalid group error = nil")
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "rfbridge "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestAddConfigFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var path string
	addConfigFlag(fs, &path)

	if err := fs.Parse([]string{"-c", "/etc/rfbridge.yaml"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if path != "/etc/rfbridge.yaml" {
		t.Errorf("config path = %q", path)
	}
}
