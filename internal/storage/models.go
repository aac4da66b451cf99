package storage

import (
	"fmt"
	"net/netip"
)

// Server documents carry at minimum:
//
//	ip       string   dotted-quad address
//	port     numeric  listening port
//	protocol numeric  advertised protocol number (optional)
//
// plus the merge fields written by the processing pipeline (description,
// version, player counts, activity timestamps, players.<uuid> entries).

// ParseAddrPort extracts the identity fields from a stored server document.
// Stored data is only as clean as past writers made it, so both fields are
// validated; callers skip malformed documents with a diagnostic rather than
// failing the batch.
func ParseAddrPort(doc map[string]interface{}) (netip.Addr, uint16, error) {
	ip, ok := doc["ip"].(string)
	if !ok {
		return netip.Addr{}, 0, fmt.Errorf("document has no ip field")
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, 0, fmt.Errorf("invalid address %q: %w", ip, err)
	}

	port, ok := numericPort(doc["port"])
	if !ok {
		return netip.Addr{}, 0, fmt.Errorf("document has no valid port field")
	}
	return addr, port, nil
}

// ParseProtocol extracts the stored protocol hint, or fallback when absent.
func ParseProtocol(doc map[string]interface{}, fallback int32) int32 {
	switch n := doc["protocol"].(type) {
	case int32:
		return n
	case int64:
		return int32(n)
	case float64:
		return int32(n)
	default:
		return fallback
	}
}

// numericPort reads a port from the numeric BSON types past writers have
// used for it.
func numericPort(v interface{}) (uint16, bool) {
	var port int64
	switch n := v.(type) {
	case int32:
		port = int64(n)
	case int64:
		port = n
	case float64:
		port = int64(n)
	default:
		return 0, false
	}
	if port < 0 || port > 65535 {
		return 0, false
	}
	return uint16(port), true
}
