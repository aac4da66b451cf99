// Package scanning defines the types exchanged with the external scanning
// engine: the targets it probes and the raw responses it hands back for
// processing.
package scanning

import (
	"fmt"
	"net/netip"
	"time"
)

const (
	// DefaultPort is the Minecraft protocol's standard port. Single-port
	// deployments live here, so blocklist rejection never applies to it.
	DefaultPort uint16 = 25565

	// DefaultProtocolHint is assumed when a stored record carries no
	// protocol number (1.8.x era, the most widely accepted handshake).
	DefaultProtocolHint int32 = 47
)

// Target identifies a single host+port the scanning engine probes, with an
// optional protocol-version hint for the handshake. Immutable once issued.
type Target struct {
	Addr         netip.Addr
	Port         uint16
	ProtocolHint int32
}

// String returns the target in ip:port form.
func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Addr, t.Port)
}

// Probe pairs a target with the raw bytes its status probe returned.
// The payload is untrusted: it may be empty, truncated, or adversarial.
type Probe struct {
	Target   Target
	Data     []byte
	Received time.Time
}

// ScanRange is one or more targets selected for re-probing. Rescan batches
// are produced per server, so a range currently always holds one target.
type ScanRange struct {
	Targets []Target
}

// Single builds a range containing exactly one target.
func Single(addr netip.Addr, port uint16) ScanRange {
	return ScanRange{Targets: []Target{{Addr: addr, Port: port}}}
}

// Sink receives target ranges produced by the selectors. The scanning
// engine implements this on its side of the boundary.
type Sink interface {
	Deliver(ranges []ScanRange) error
}
