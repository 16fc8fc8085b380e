package connectivity

// LinkState is the network link phase.
type LinkState int

const (
	LinkDown LinkState = iota
	Linking
	LinkUp
)

func (s LinkState) String() string {
	switch s {
	case LinkDown:
		return "down"
	case Linking:
		return "linking"
	case LinkUp:
		return "up"
	default:
		return "unknown"
	}
}

// SessionState is the broker session phase.
type SessionState int

const (
	SessionDown SessionState = iota
	SessionConnecting
	SessionUp
)

func (s SessionState) String() string {
	switch s {
	case SessionDown:
		return "down"
	case SessionConnecting:
		return "connecting"
	case SessionUp:
		return "up"
	default:
		return "unknown"
	}
}

// State is a point-in-time view of connectivity.
type State struct {
	WifiLinked bool
	Link       LinkState
	Session    SessionState

	// LastError is the most recent failure, cleared when the session
	// comes up.
	LastError error
}

// Status is what the indicator shows.
type Status int

const (
	StatusLinkDown Status = iota
	StatusLinking
	StatusConnecting
	StatusOnline
)

func (s Status) String() string {
	switch s {
	case StatusLinkDown:
		return "link_down"
	case StatusLinking:
		return "linking"
	case StatusConnecting:
		return "connecting"
	case StatusOnline:
		return "online"
	default:
		return "unknown"
	}
}
