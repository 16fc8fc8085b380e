package provision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = "device:\n  id: porch\nmqtt:\n  broker:\n    host: broker.local\n"

func newPortal(t *testing.T, timeout time.Duration) (*Portal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "configs", "config.yaml")
	p, err := New(Options{Host: "127.0.0.1", Port: 0, ConfigPath: path, Timeout: timeout})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p, path
}

func put(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/provision", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresConfigPath(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without config path error = nil")
	}
}

// =============================================================================
// Handler
// =============================================================================

func TestHandleProvision_Accepts(t *testing.T) {
	p, path := newPortal(t, time.Minute)

	rec := put(t, p.Handler(), validConfig)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written config: %v", err)
	}
	if string(got) != validConfig {
		t.Errorf("written config = %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config mode = %o, want 600", perm)
	}

	select {
	case <-p.done:
	default:
		t.Error("portal not marked done after accepted upload")
	}

	if rec := put(t, p.Handler(), validConfig); rec.Code != http.StatusConflict {
		t.Errorf("second upload status = %d, want 409", rec.Code)
	}
}

func TestHandleProvision_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid yaml", "device: [unclosed"},
		{"fails validation", "rf:\n  driver: laser\n"},
		{"empty device id", "device:\n  id: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, path := newPortal(t, time.Minute)

			rec := put(t, p.Handler(), tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("config written for a rejected upload (stat err = %v)", err)
			}
		})
	}
}

func TestHandleProvision_TooLarge(t *testing.T) {
	p, _ := newPortal(t, time.Minute)

	body := "device:\n  id: x\n#" + strings.Repeat("a", maxConfigSize)
	if rec := put(t, p.Handler(), body); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	p, _ := newPortal(t, time.Minute)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "provisioning") {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

// =============================================================================
// Provision lifecycle
// =============================================================================

func TestProvision_CompletesOnUpload(t *testing.T) {
	p, path := newPortal(t, time.Minute)

	result := make(chan error, 1)
	go func() { result <- p.Provision(context.Background()) }()

	req, err := http.NewRequest(http.MethodPut, "http://"+p.Addr()+"/api/v1/provision", strings.NewReader(validConfig))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Provision() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Provision() did not return after upload")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config not written: %v", err)
	}
}

func TestProvision_Timeout(t *testing.T) {
	p, _ := newPortal(t, 20*time.Millisecond)

	if err := p.Provision(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Errorf("Provision() error = %v, want ErrTimeout", err)
	}
}

func TestProvision_Cancelled(t *testing.T) {
	p, _ := newPortal(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- p.Provision(ctx) }()

	p.Addr()
	cancel()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Provision() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Provision() did not return after cancel")
	}
}
