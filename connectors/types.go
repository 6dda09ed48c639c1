package connectors

import (
	"fmt"
	"net"
	"strconv"
)

// Split is a unit of remote work that the scheduler assigns to a worker.
type Split interface {
	// NodeSelectionStrategy reports whether the split has placement affinity to
	// specific hosts.
	NodeSelectionStrategy() NodeSelectionStrategy

	// PreferredNodes picks the hosts the split would rather run on from the
	// scheduler's sorted candidates. An empty result means any worker will do.
	PreferredNodes(sortedCandidates []HostAddress) []HostAddress

	// Info returns a value describing the split for diagnostics.
	Info() any
}

type NodeSelectionStrategy int

const (
	NoPreference NodeSelectionStrategy = iota
	SoftAffinity
	HardAffinity
)

func (s NodeSelectionStrategy) String() string {
	switch s {
	case NoPreference:
		return "NO_PREFERENCE"
	case SoftAffinity:
		return "SOFT_AFFINITY"
	case HardAffinity:
		return "HARD_AFFINITY"
	default:
		return fmt.Sprintf("NodeSelectionStrategy(%d)", int(s))
	}
}

// HostAddress is a worker or storage node address known to the scheduler.
type HostAddress struct {
	Host string
	Port int
}

// ParseHostAddress parses "host:port". A missing port is left as 0.
func ParseHostAddress(addr string) (HostAddress, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// Bare host without a port
		if addrErr, ok := err.(*net.AddrError); ok && addrErr.Err == "missing port in address" {
			return HostAddress{Host: addr}, nil
		}
		return HostAddress{}, fmt.Errorf("invalid host address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return HostAddress{}, fmt.Errorf("invalid port in host address %q", addr)
	}
	return HostAddress{Host: host, Port: port}, nil
}

func (a HostAddress) String() string {
	if a.Port == 0 {
		return a.Host
	}
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}
