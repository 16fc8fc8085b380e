package connectivity

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/rfbridge/internal/infrastructure/mqtt"
)

// Link checks and acquires the network link. Neither method may block.
type Link interface {
	// Up reports whether the link is usable right now.
	Up() bool

	// Reassociate starts an acquisition attempt in the background.
	Reassociate() error
}

// Session is the broker session. Connect and Subscribe return pending
// tokens that the machine polls on later ticks.
type Session interface {
	Connect() mqtt.Token
	Subscribe(topics ...string) mqtt.Token
	IsConnected() bool
	Publish(topic string, payload []byte, retained bool) error

	// Drop abandons the current session without waiting.
	Drop()
}

// Advertiser registers the device for local service discovery.
type Advertiser interface {
	Register() error
	Shutdown()
}

// Indicator shows the connectivity status to a person near the device.
type Indicator interface {
	Show(Status)
}

// SignalSource reads the link signal strength.
type SignalSource interface {
	Signal() (dBm int, err error)
}

// SignalRecorder receives every published signal reading.
type SignalRecorder interface {
	RecordSignal(dBm int)
}

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// MachineOptions configures a Machine. Link, Session and Topics are required.
type MachineOptions struct {
	Link    Link
	Session Session
	Topics  mqtt.Topics

	Advertiser Advertiser
	Indicator  Indicator
	Signal     SignalSource
	Recorder   SignalRecorder

	// LinkBackoff and SessionBackoff space out failed attempts.
	LinkBackoff    *Backoff
	SessionBackoff *Backoff

	// LinkTimeout bounds one link acquisition attempt.
	LinkTimeout time.Duration

	// SignalInterval is the period of signal telemetry while online.
	SignalInterval time.Duration

	// OnSessionUp runs on the tick that brings the session up.
	OnSessionUp func()

	Logger Logger
}

// Machine is the non-blocking link and session state machine. Tick must
// be called from a single goroutine; Snapshot may be called from any.
type Machine struct {
	opts MachineOptions
	log  Logger

	mu    sync.RWMutex
	state State

	linkRetryAt    time.Time
	linkDeadline   time.Time
	sessionRetryAt time.Time
	nextSignal     time.Time

	connectToken   mqtt.Token
	subscribeToken mqtt.Token
}

// NewMachine creates a machine in LinkDown/SessionDown.
func NewMachine(opts MachineOptions) (*Machine, error) {
	if opts.Link == nil {
		return nil, errors.New("connectivity: link is required")
	}
	if opts.Session == nil {
		return nil, errors.New("connectivity: session is required")
	}
	if opts.Topics.Prefix == "" {
		return nil, errors.New("connectivity: topics are required")
	}
	if opts.LinkBackoff == nil {
		opts.LinkBackoff = NewBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	}
	if opts.SessionBackoff == nil {
		opts.SessionBackoff = NewBackoff(DefaultBackoffInitial, DefaultBackoffMax)
	}
	if opts.LinkTimeout <= 0 {
		opts.LinkTimeout = 30 * time.Second
	}

	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}

	m := &Machine{opts: opts, log: log}
	m.show(StatusLinkDown)
	return m, nil
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SessionUp reports whether publishing and inbound decoding are possible.
func (m *Machine) SessionUp() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Session == SessionUp
}

// Tick re-derives the link state from the link check, then advances the
// link or session by at most one step. It never waits.
func (m *Machine) Tick(now time.Time) {
	up := m.opts.Link.Up()
	st := m.Snapshot()

	switch {
	case up && st.Link != LinkUp:
		m.linkUp()
	case !up && st.Link == LinkUp:
		m.linkLost(now)
	}

	st = m.Snapshot()
	if st.Link != LinkUp {
		m.tickLink(now, st)
		return
	}

	m.tickSession(now, st)
	if m.SessionUp() {
		m.tickSignal(now)
	}
}

func (m *Machine) linkUp() {
	m.update(func(s *State) {
		s.Link = LinkUp
		s.WifiLinked = true
	})
	m.opts.LinkBackoff.Reset()
	m.log.Info("network link up")

	if m.opts.Advertiser != nil {
		if err := m.opts.Advertiser.Register(); err != nil {
			m.log.Warn("service discovery registration failed", "error", err)
		}
	}
	m.show(StatusConnecting)
}

func (m *Machine) linkLost(now time.Time) {
	m.update(func(s *State) {
		s.Link = LinkDown
		s.WifiLinked = false
		s.LastError = ErrLink
	})
	m.dropSession()
	m.linkRetryAt = now
	m.log.Warn("network link lost")

	if m.opts.Advertiser != nil {
		m.opts.Advertiser.Shutdown()
	}
	m.show(StatusLinkDown)
}

func (m *Machine) tickLink(now time.Time, st State) {
	switch st.Link {
	case LinkDown:
		if now.Before(m.linkRetryAt) {
			return
		}
		if err := m.opts.Link.Reassociate(); err != nil {
			m.failLink(now, err)
			return
		}
		m.linkDeadline = now.Add(m.opts.LinkTimeout)
		m.update(func(s *State) { s.Link = Linking })
		m.log.Debug("acquiring network link", "timeout", m.opts.LinkTimeout)
		m.show(StatusLinking)

	case Linking:
		if now.After(m.linkDeadline) {
			m.failLink(now, fmt.Errorf("no link after %v", m.opts.LinkTimeout))
		}
	}
}

func (m *Machine) failLink(now time.Time, cause error) {
	delay := m.opts.LinkBackoff.Next()
	m.linkRetryAt = now.Add(delay)
	m.update(func(s *State) {
		s.Link = LinkDown
		s.LastError = fmt.Errorf("%w: %w", ErrLink, cause)
	})
	m.log.Warn("network link acquisition failed", "error", cause, "retry_in", delay)
	m.show(StatusLinkDown)
}

func (m *Machine) tickSession(now time.Time, st State) {
	switch st.Session {
	case SessionDown:
		if now.Before(m.sessionRetryAt) {
			return
		}
		m.connectToken = m.opts.Session.Connect()
		m.subscribeToken = nil
		m.update(func(s *State) { s.Session = SessionConnecting })
		m.show(StatusConnecting)

	case SessionConnecting:
		if m.subscribeToken == nil {
			if !done(m.connectToken) {
				return
			}
			if err := m.connectToken.Error(); err != nil {
				m.failSession(now, fmt.Errorf("connect: %w", err))
				return
			}
			m.subscribeToken = m.opts.Session.Subscribe(m.opts.Topics.Commands()...)
			return
		}

		if !done(m.subscribeToken) {
			if !m.opts.Session.IsConnected() {
				m.failSession(now, errors.New("connection closed while subscribing"))
			}
			return
		}
		if err := m.subscribeToken.Error(); err != nil {
			m.failSession(now, fmt.Errorf("subscribe: %w", err))
			return
		}
		m.sessionUp(now)

	case SessionUp:
		if !m.opts.Session.IsConnected() {
			m.sessionRetryAt = now
			m.update(func(s *State) {
				s.Session = SessionDown
				s.LastError = ErrSessionLost
			})
			m.log.Warn("broker session lost")
			m.show(StatusConnecting)
		}
	}
}

func (m *Machine) sessionUp(now time.Time) {
	m.connectToken, m.subscribeToken = nil, nil
	m.opts.SessionBackoff.Reset()
	m.update(func(s *State) {
		s.Session = SessionUp
		s.LastError = nil
	})

	if err := m.opts.Session.Publish(m.opts.Topics.Status(), []byte(mqtt.PayloadOnline), true); err != nil {
		m.log.Warn("failed to publish availability", "error", err)
	}
	m.log.Info("broker session up", "subscriptions", m.opts.Topics.Commands())
	m.show(StatusOnline)

	m.nextSignal = now
	if m.opts.OnSessionUp != nil {
		m.opts.OnSessionUp()
	}
}

func (m *Machine) failSession(now time.Time, cause error) {
	m.opts.Session.Drop()
	m.connectToken, m.subscribeToken = nil, nil

	delay := m.opts.SessionBackoff.Next()
	m.sessionRetryAt = now.Add(delay)
	m.update(func(s *State) {
		s.Session = SessionDown
		s.LastError = fmt.Errorf("%w: %w", ErrSession, cause)
	})
	m.log.Warn("broker session attempt failed", "error", cause, "retry_in", delay)
}

func (m *Machine) dropSession() {
	if m.Snapshot().Session != SessionDown {
		m.opts.Session.Drop()
	}
	m.connectToken, m.subscribeToken = nil, nil
	m.sessionRetryAt = time.Time{}
	m.update(func(s *State) { s.Session = SessionDown })
}

func (m *Machine) tickSignal(now time.Time) {
	if m.opts.Signal == nil || m.opts.SignalInterval <= 0 || now.Before(m.nextSignal) {
		return
	}
	m.nextSignal = now.Add(m.opts.SignalInterval)

	dBm, err := m.opts.Signal.Signal()
	if err != nil {
		m.log.Debug("signal strength unavailable", "error", err)
		return
	}
	if err := m.opts.Session.Publish(m.opts.Topics.RSSI(), []byte(strconv.Itoa(dBm)), true); err != nil {
		m.log.Debug("signal strength not published", "error", err)
	}
	if m.opts.Recorder != nil {
		m.opts.Recorder.RecordSignal(dBm)
	}
}

func (m *Machine) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	m.mu.Unlock()
}

func (m *Machine) show(s Status) {
	if m.opts.Indicator != nil {
		m.opts.Indicator.Show(s)
	}
}

func done(t mqtt.Token) bool {
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}
