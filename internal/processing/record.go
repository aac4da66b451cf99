// Package processing turns raw probe payloads into canonical server records,
// vets them against honeypot and middlebox heuristics, and builds the
// partial-update requests handed to the batched writer.
package processing

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// OnlineMode classifies a server's authentication mode as inferred from its
// player sample.
type OnlineMode int

const (
	// OnlineModeUnknown means the sample carried no usable identifiers.
	OnlineModeUnknown OnlineMode = iota
	// OnlineModeOnline means sampled identifiers were random (v4) UUIDs.
	OnlineModeOnline
	// OnlineModeOffline means sampled identifiers were name-derived (v3) UUIDs.
	OnlineModeOffline
	// OnlineModeMixed means the sample disagreed with itself. This is
	// genuinely ambiguous and is never stored as a boolean.
	OnlineModeMixed
)

// Player is one sampled player presence entry.
type Player struct {
	// ID is the hyphen-stripped lowercase hex form of the player UUID,
	// used as the storage key.
	ID   string
	Name string
}

// Record holds the canonical fields derived from one probe response.
// Records are ephemeral: they are consumed immediately by the anomaly
// tracker and the update builder.
type Record struct {
	Description   string
	VersionName   string
	Protocol      int32
	MaxPlayers    int32
	OnlinePlayers int32
	Modded        bool

	OnlineMode OnlineMode
	Players    []Player

	// FakeSample marks a sample containing identifiers matching neither
	// recognized UUID scheme. Player-derived fields are suppressed for
	// the whole record while non-player fields are still stored.
	FakeSample bool

	// Timestamp is when the response was normalized; it stamps lastSeen
	// and the activity fields.
	Timestamp time.Time
}

// Fields returns the flat set of field assignments for a partial merge
// update. Fields absent from the map are left untouched on the stored
// record; notably, a Mixed or Unknown online-mode never asserts a boolean.
func (r *Record) Fields() bson.M {
	fields := bson.M{
		"description":   r.Description,
		"version":       r.VersionName,
		"protocol":      r.Protocol,
		"maxPlayers":    r.MaxPlayers,
		"onlinePlayers": r.OnlinePlayers,
		"lastSeen":      r.Timestamp,
	}

	if r.Modded {
		fields["isModded"] = true
	}

	if r.FakeSample {
		return fields
	}

	for _, p := range r.Players {
		fields["players."+p.ID] = bson.M{
			"name":     p.Name,
			"lastSeen": r.Timestamp,
		}
	}

	switch r.OnlineMode {
	case OnlineModeOnline:
		fields["onlineMode"] = true
	case OnlineModeOffline:
		fields["onlineMode"] = false
	}

	if len(r.Players) > 0 {
		fields["lastActive"] = r.Timestamp
	} else {
		fields["lastEmpty"] = r.Timestamp
	}

	return fields
}
