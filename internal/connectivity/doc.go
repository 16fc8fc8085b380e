// Package connectivity keeps the bridge attached to its network and broker.
//
// Machine is a tick-driven state machine with two layers: the network link
// (LinkDown, Linking, LinkUp) and the broker session (SessionDown,
// SessionConnecting, SessionUp). Each Tick re-checks the link, then advances
// at most one step. Broker operations return tokens that are polled on later
// ticks, so a Tick never waits on the network.
//
// Failed link and session attempts are retried with exponential backoff and
// ±20% jitter. The session is only attempted while the link is up, and a lost
// link tears the session down with it.
//
// Usage:
//
//	m, err := connectivity.NewMachine(connectivity.MachineOptions{
//	    Link:    connectivity.NewInterfaceLink(cfg.Network, log),
//	    Session: mqttClient,
//	    Topics:  topics,
//	})
//	for {
//	    m.Tick(time.Now())
//	    if m.SessionUp() { ... }
//	}
package connectivity
