package processing

import (
	"net/netip"
	"sync"

	"github.com/Puyodead1/matscan/internal/scanning"
)

// promoteThreshold is the number of distinct ports on one address that must
// produce identical content fingerprints before the address is blocklisted.
// Middleboxes and honeypots answer every port with byte-identical payloads;
// legitimate deployments essentially never run 100 real instances with
// identical dynamic state behind one address.
const promoteThreshold = 100

// Outcome is the tracker's verdict for one observed record.
type Outcome int

const (
	// OutcomeAccept lets the record proceed to the update builder.
	OutcomeAccept Outcome = iota
	// OutcomeReject drops the record (blocklisted address).
	OutcomeReject
	// OutcomePromote drops the record and instructs the caller to run the
	// blocklist side effects for this address. Returned exactly once per
	// address, on the observation that crossed the threshold. The side
	// effects are deliberately the caller's job: they involve store and
	// webhook calls that must not run under the tracker's lock.
	OutcomePromote
)

// addrEntry is the per-address repeat state. Once an address shows two
// distinct fingerprints across ports, counting is disabled permanently; the
// entry is retained so later probes skip the bookkeeping cheaply.
type addrEntry struct {
	hash     uint64
	count    int
	counting bool
	ports    map[uint16]struct{}
}

// Tracker maintains the per-address repeat cache and the blocklist under a
// single exclusive-access region. Both structures live for the process
// lifetime: the cache is rebuilt from scratch on restart, the blocklist is
// seeded from the store. The cache has no eviction; growth is bounded only
// by the address space observed.
//
// Every critical section here is synchronous and brief. Nothing that can
// block is ever called with the lock held.
type Tracker struct {
	mu      sync.Mutex
	entries map[netip.Addr]*addrEntry
	blocked map[netip.Addr]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[netip.Addr]*addrEntry),
		blocked: make(map[netip.Addr]struct{}),
	}
}

// Seed marks addresses as blocked, typically from the persisted blocklist
// at startup.
func (t *Tracker) Seed(addrs []netip.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, addr := range addrs {
		t.blocked[addr] = struct{}{}
	}
}

// Blocked reports whether probes of addr:port should be rejected outright.
// The protocol's default port is always exempt: legitimate single-port
// deployments live there and must not be silenced by a block on the rest
// of the address.
func (t *Tracker) Blocked(addr netip.Addr, port uint16) bool {
	if port == scanning.DefaultPort {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.blocked[addr]
	return ok
}

// BlockedCount returns the current blocklist size.
func (t *Tracker) BlockedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.blocked)
}

// Observe records one accepted response's fingerprint for addr:port and
// returns the verdict. Lookup and update happen as one atomic step so
// concurrent probes never double-count a port or race an increment.
func (t *Tracker) Observe(addr netip.Addr, port uint16, fingerprint uint64) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, bad := t.blocked[addr]; bad && port != scanning.DefaultPort {
		return OutcomeReject
	}

	entry, ok := t.entries[addr]
	if !ok {
		t.entries[addr] = &addrEntry{
			hash:     fingerprint,
			count:    1,
			counting: true,
			ports:    map[uint16]struct{}{port: {}},
		}
		return OutcomeAccept
	}

	if _, seen := entry.ports[port]; seen {
		// Repeat probe of a port already counted for this address.
		return OutcomeAccept
	}

	if !entry.counting {
		return OutcomeAccept
	}

	if fingerprint != entry.hash {
		// Two distinct fingerprints across ports: a real multi-instance
		// host, not a blocklist candidate. Counting stays off for good.
		entry.counting = false
		return OutcomeAccept
	}

	entry.count++
	entry.ports[port] = struct{}{}

	if entry.count >= promoteThreshold {
		t.blocked[addr] = struct{}{}
		// Counting is done for this address; without this, a later
		// default-port probe could re-signal the promotion.
		entry.counting = false
		return OutcomePromote
	}

	return OutcomeAccept
}
