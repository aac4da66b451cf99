package scanning

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetString(t *testing.T) {
	target := Target{Addr: netip.MustParseAddr("203.0.113.5"), Port: 25565}
	assert.Equal(t, "203.0.113.5:25565", target.String())
}

func TestSingle(t *testing.T) {
	addr := netip.MustParseAddr("198.51.100.7")
	r := Single(addr, 25599)

	require.Len(t, r.Targets, 1)
	assert.Equal(t, addr, r.Targets[0].Addr)
	assert.Equal(t, uint16(25599), r.Targets[0].Port)
	assert.Zero(t, r.Targets[0].ProtocolHint)
}
