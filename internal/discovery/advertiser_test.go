package discovery

import (
	"errors"
	"net"
	"reflect"
	"testing"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
)

type fakeServer struct {
	shutdowns int
}

func (s *fakeServer) Shutdown() { s.shutdowns++ }

type registerCall struct {
	instance, service, domain string
	port                      int
	txt                       []string
}

func newTestAdvertiser(enabled bool) (*Advertiser, *[]registerCall, *fakeServer) {
	var calls []registerCall
	server := &fakeServer{}

	a := New(Options{
		Config: config.DiscoveryConfig{
			Enabled: enabled,
			Service: "_rfbridge._tcp",
			Domain:  "local.",
		},
		DeviceID: "garage",
		Version:  "1.2.0",
		Port:     8266,
	})
	a.register = func(instance, service, domain string, port int, txt []string, _ []net.Interface) (registration, error) {
		calls = append(calls, registerCall{instance, service, domain, port, txt})
		return server, nil
	}
	return a, &calls, server
}

func TestAdvertiser_Register(t *testing.T) {
	a, calls, _ := newTestAdvertiser(true)

	if err := a.Register(); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("register calls = %d, want 1", len(*calls))
	}

	want := registerCall{
		instance: "rfbridge-garage",
		service:  "_rfbridge._tcp",
		domain:   "local.",
		port:     8266,
		txt:      []string{"id=garage", "version=1.2.0"},
	}
	if !reflect.DeepEqual((*calls)[0], want) {
		t.Errorf("register call = %+v, want %+v", (*calls)[0], want)
	}
	if !a.Registered() {
		t.Error("Registered() = false after Register")
	}

	// Second call while registered is a no-op.
	if err := a.Register(); err != nil {
		t.Fatalf("Register() again error = %v", err)
	}
	if len(*calls) != 1 {
		t.Errorf("register calls = %d, want 1", len(*calls))
	}
}

func TestAdvertiser_ShutdownAndReregister(t *testing.T) {
	a, calls, server := newTestAdvertiser(true)

	if err := a.Register(); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	a.Shutdown()
	a.Shutdown()

	if server.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", server.shutdowns)
	}
	if a.Registered() {
		t.Error("Registered() = true after Shutdown")
	}

	if err := a.Register(); err != nil {
		t.Fatalf("Register() after Shutdown error = %v", err)
	}
	if len(*calls) != 2 {
		t.Errorf("register calls = %d, want 2", len(*calls))
	}
}

func TestAdvertiser_Disabled(t *testing.T) {
	a, calls, _ := newTestAdvertiser(false)

	if err := a.Register(); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("register calls = %d, want 0 when disabled", len(*calls))
	}
	a.Shutdown()
}

func TestAdvertiser_RegisterError(t *testing.T) {
	a, _, _ := newTestAdvertiser(true)
	a.register = func(string, string, string, int, []string, []net.Interface) (registration, error) {
		return nil, errors.New("no multicast interface")
	}

	if err := a.Register(); err == nil {
		t.Fatal("Register() error = nil, want error")
	}
	if a.Registered() {
		t.Error("Registered() = true after a failed Register")
	}
}

func TestAdvertiser_UnknownInterface(t *testing.T) {
	a, calls, _ := newTestAdvertiser(true)
	a.opts.Interface = "no-such-iface0"

	if err := a.Register(); err == nil {
		t.Fatal("Register() error = nil for an unknown interface")
	}
	if len(*calls) != 0 {
		t.Errorf("register calls = %d, want 0", len(*calls))
	}
}
