// Package discovery registers the bridge for mDNS/DNS-SD service discovery
// so it can be found on the local network while the link is up.
package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
)

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// registration is the live announcement returned by zeroconf.Register.
type registration interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (registration, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (registration, error) {
	server, err := zeroconf.Register(instance, service, domain, port, txt, ifaces)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Options configures an Advertiser.
type Options struct {
	Config   config.DiscoveryConfig
	DeviceID string
	Version  string

	// Port is the advertised HTTP port (the update and status API).
	Port int

	// Interface limits the announcement to one interface when set.
	Interface string

	Logger Logger
}

// Advertiser announces "rfbridge-<device id>" under the configured service
// type. Register and Shutdown may be called repeatedly as the link flaps.
type Advertiser struct {
	opts     Options
	logger   Logger
	register registerFunc

	mu     sync.Mutex
	server registration
}

// New creates an Advertiser. Nothing is announced until Register.
func New(opts Options) *Advertiser {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Advertiser{opts: opts, logger: logger, register: zeroconfRegister}
}

// Instance returns the announced instance name.
func (a *Advertiser) Instance() string {
	return "rfbridge-" + a.opts.DeviceID
}

// TXT returns the announced TXT records.
func (a *Advertiser) TXT() []string {
	txt := []string{"id=" + a.opts.DeviceID}
	if a.opts.Version != "" {
		txt = append(txt, "version="+a.opts.Version)
	}
	return txt
}

// Register starts announcing. It is a no-op when discovery is disabled or
// an announcement is already running.
func (a *Advertiser) Register() error {
	if !a.opts.Config.Enabled {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	var ifaces []net.Interface
	if a.opts.Interface != "" {
		iface, err := net.InterfaceByName(a.opts.Interface)
		if err != nil {
			return fmt.Errorf("discovery interface %s: %w", a.opts.Interface, err)
		}
		ifaces = []net.Interface{*iface}
	}

	server, err := a.register(a.Instance(), a.opts.Config.Service, a.opts.Config.Domain, a.opts.Port, a.TXT(), ifaces)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	a.server = server
	a.logger.Info("mdns service advertised",
		"instance", a.Instance(),
		"service", a.opts.Config.Service,
		"port", a.opts.Port,
	)
	return nil
}

// Shutdown withdraws the announcement, if any.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}

// Registered reports whether an announcement is running.
func (a *Advertiser) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
