package controller

import "sync/atomic"

// Stats is a point-in-time copy of the controller counters.
type Stats struct {
	ConnectAttempts uint64 `json:"connect_attempts"`
	Connects        uint64 `json:"connects"`
	Polls           uint64 `json:"polls"`
	PollFailures    uint64 `json:"poll_failures"`
	Disconnects     uint64 `json:"disconnects"`
	Connected       bool   `json:"connected"`
}

type counters struct {
	connectAttempts atomic.Uint64
	connects        atomic.Uint64
	polls           atomic.Uint64
	pollFailures    atomic.Uint64
	disconnects     atomic.Uint64
	connected       atomic.Bool
}

func (c *counters) snapshot() Stats {
	return Stats{
		ConnectAttempts: c.connectAttempts.Load(),
		Connects:        c.connects.Load(),
		Polls:           c.polls.Load(),
		PollFailures:    c.pollFailures.Load(),
		Disconnects:     c.disconnects.Load(),
		Connected:       c.connected.Load(),
	}
}
