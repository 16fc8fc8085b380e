package connectivity

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
)

// InterfaceLink checks a network interface for an up flag and a routable
// address. Acquisition runs an optional external command (for example
// "wpa_cli reassociate") without waiting for it.
type InterfaceLink struct {
	name    string
	command []string
	log     Logger

	running atomic.Bool

	interfaces func() ([]net.Interface, error)
	addrs      func(net.Interface) ([]net.Addr, error)
}

// NewInterfaceLink creates a link check for cfg.Interface. An empty
// interface name accepts any non-loopback interface.
func NewInterfaceLink(cfg config.NetworkConfig, log Logger) *InterfaceLink {
	if log == nil {
		log = noopLogger{}
	}
	return &InterfaceLink{
		name:       cfg.Interface,
		command:    cfg.ReassociateCommand,
		log:        log,
		interfaces: net.Interfaces,
		addrs:      func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

// Up reports whether the interface is up with a usable address.
func (l *InterfaceLink) Up() bool {
	ifaces, err := l.interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if l.name != "" && iface.Name != l.name {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := l.addrs(iface)
		if err != nil {
			continue
		}
		if usable(addrs) {
			return true
		}
	}
	return false
}

// Reassociate starts the configured command. A command still running from
// an earlier attempt is left alone.
func (l *InterfaceLink) Reassociate() error {
	if len(l.command) == 0 {
		return nil
	}
	if !l.running.CompareAndSwap(false, true) {
		return nil
	}

	cmd := exec.Command(l.command[0], l.command[1:]...) //nolint:gosec // operator-configured command
	if err := cmd.Start(); err != nil {
		l.running.Store(false)
		return fmt.Errorf("starting %s: %w", l.command[0], err)
	}

	go func() {
		defer l.running.Store(false)
		if err := cmd.Wait(); err != nil {
			l.log.Warn("reassociate command failed", "command", l.command[0], "error", err)
		}
	}()
	return nil
}

// usable reports whether any address is neither loopback nor link-local.
func usable(addrs []net.Addr) bool {
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return true
	}
	return false
}

// WirelessSignal reads the signal level of an interface from the kernel's
// wireless statistics table.
type WirelessSignal struct {
	Path      string
	Interface string
}

// NewWirelessSignal creates a signal source from the network config.
func NewWirelessSignal(cfg config.NetworkConfig) WirelessSignal {
	return WirelessSignal{Path: cfg.WirelessStatsPath, Interface: cfg.Interface}
}

// Signal returns the current level in dBm.
func (w WirelessSignal) Signal() (int, error) {
	f, err := os.Open(w.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck // read-only
	return parseWireless(f, w.Interface)
}

// parseWireless extracts the level column for iface. An empty iface takes
// the first listed interface.
//
//	Inter-| sta-|   Quality        |   Discarded packets
//	 face | tus | link level noise |  nwid  crypt   frag
//	 wlan0: 0000   54.  -56.  -256        0      0      0
func parseWireless(r io.Reader, iface string) (int, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		if iface != "" && strings.TrimSpace(name) != iface {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("short wireless stats line for %s", strings.TrimSpace(name))
		}
		dBm, err := strconv.Atoi(strings.TrimSuffix(fields[2], "."))
		if err != nil {
			return 0, fmt.Errorf("parsing signal level %q: %w", fields[2], err)
		}
		return dBm, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if iface == "" {
		return 0, errors.New("no wireless interfaces listed")
	}
	return 0, fmt.Errorf("interface %s not listed", iface)
}
