package processing

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Puyodead1/matscan/internal/scanning"
)

func addr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func TestTrackerPromotesAtThreshold(t *testing.T) {
	tr := NewTracker()
	host := addr("203.0.113.9")

	for port := uint16(10000); port < 10000+promoteThreshold-1; port++ {
		assert.Equal(t, OutcomeAccept, tr.Observe(host, port, 0xfeed))
	}
	assert.False(t, tr.Blocked(host, 10500))

	// The hundredth distinct port crosses the threshold.
	assert.Equal(t, OutcomePromote, tr.Observe(host, 10999, 0xfeed))
	assert.True(t, tr.Blocked(host, 10500))
	assert.Equal(t, 1, tr.BlockedCount())
}

func TestTrackerPromotesExactlyOnce(t *testing.T) {
	tr := NewTracker()
	host := addr("203.0.113.9")

	for port := uint16(10000); port < 10000+promoteThreshold-1; port++ {
		tr.Observe(host, port, 0xfeed)
	}
	require.Equal(t, OutcomePromote, tr.Observe(host, 10999, 0xfeed))

	// Further observations never re-signal, even on the exempt default
	// port where probes still flow.
	assert.Equal(t, OutcomeReject, tr.Observe(host, 11000, 0xfeed))
	assert.Equal(t, OutcomeAccept, tr.Observe(host, scanning.DefaultPort, 0xfeed))
	assert.Equal(t, OutcomeAccept, tr.Observe(host, scanning.DefaultPort, 0xfeed))
}

func TestTrackerFingerprintMismatchDisablesCounting(t *testing.T) {
	tr := NewTracker()
	host := addr("198.51.100.4")

	for port := uint16(20000); port < 20050; port++ {
		require.Equal(t, OutcomeAccept, tr.Observe(host, port, 0xaaaa))
	}

	// One disagreeing fingerprint ends counting for good.
	assert.Equal(t, OutcomeAccept, tr.Observe(host, 20050, 0xbbbb))

	// Even hundreds of matching ports afterwards never promote.
	for port := uint16(21000); port < 21300; port++ {
		assert.Equal(t, OutcomeAccept, tr.Observe(host, port, 0xaaaa))
	}
	assert.False(t, tr.Blocked(host, 21000))
	assert.Zero(t, tr.BlockedCount())
}

func TestTrackerDuplicatePortNeverDoubleCounts(t *testing.T) {
	tr := NewTracker()
	host := addr("192.0.2.77")

	for port := uint16(30000); port < 30000+promoteThreshold-1; port++ {
		tr.Observe(host, port, 0x1234)
	}

	// Re-probing already-counted ports must not push the count over.
	for i := 0; i < 50; i++ {
		assert.Equal(t, OutcomeAccept, tr.Observe(host, 30000, 0x1234))
	}
	assert.False(t, tr.Blocked(host, 30000))

	assert.Equal(t, OutcomePromote, tr.Observe(host, 40000, 0x1234))
}

func TestTrackerDefaultPortExemption(t *testing.T) {
	tr := NewTracker()
	host := addr("203.0.113.200")

	tr.Seed([]netip.Addr{host})

	assert.True(t, tr.Blocked(host, 1337))
	assert.False(t, tr.Blocked(host, scanning.DefaultPort))
	assert.Equal(t, OutcomeAccept, tr.Observe(host, scanning.DefaultPort, 0x9999))
	assert.Equal(t, OutcomeReject, tr.Observe(host, 1337, 0x9999))
}

func TestTrackerSeed(t *testing.T) {
	tr := NewTracker()
	seeded := []netip.Addr{addr("10.0.0.1"), addr("10.0.0.2")}
	tr.Seed(seeded)

	assert.Equal(t, 2, tr.BlockedCount())
	for _, a := range seeded {
		assert.True(t, tr.Blocked(a, 8080))
	}
	assert.False(t, tr.Blocked(addr("10.0.0.3"), 8080))
}

func TestTrackerIndependentAddresses(t *testing.T) {
	tr := NewTracker()

	for port := uint16(10000); port < 10000+promoteThreshold; port++ {
		tr.Observe(addr("203.0.113.9"), port, 0xfeed)
	}
	require.Equal(t, 1, tr.BlockedCount())

	// A different address with the same fingerprint starts from zero.
	assert.Equal(t, OutcomeAccept, tr.Observe(addr("203.0.113.10"), 10000, 0xfeed))
	assert.False(t, tr.Blocked(addr("203.0.113.10"), 10000))
}

func TestTrackerConcurrentObserve(t *testing.T) {
	tr := NewTracker()
	host := addr("198.51.100.50")

	var wg sync.WaitGroup
	var mu sync.Mutex
	promotions := 0

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for port := uint16(10000); port < 10000+2*promoteThreshold; port++ {
				if tr.Observe(host, port, 0xc0ffee) == OutcomePromote {
					mu.Lock()
					promotions++
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, promotions, "threshold crossing must signal exactly once")
	assert.True(t, tr.Blocked(host, 10000))
}
