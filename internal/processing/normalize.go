package processing

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxSampledPlayers bounds how many player sample entries are read, against
// hostile servers returning huge arrays.
const maxSampledPlayers = 100

// moddedMarkerKeys are payload keys advertised by the known mod loaders.
var moddedMarkerKeys = []string{"modinfo", "forgeData", "modpackData"}

// Normalize parses one raw probe payload into a canonical record. It returns
// false when the payload is not a status response for this protocol: not a
// JSON object, no deserializable description, or a known honeypot signature.
// Rejection here is routine at internet scale and is never an error.
func Normalize(raw []byte) (*Record, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}

	// No description means this is not a Minecraft server. Partial records
	// are never produced.
	descRaw, ok := payload["description"]
	if !ok {
		return nil, false
	}
	description, ok := FlattenDescription(descRaw)
	if !ok {
		return nil, false
	}

	version, _ := payload["version"].(map[string]interface{})
	versionName, _ := version["name"].(string)
	protocol := asInt32(version["protocol"])

	if matchesKnownSignature(description, versionName) {
		return nil, false
	}

	players, _ := payload["players"].(map[string]interface{})

	rec := &Record{
		Description:   description,
		VersionName:   versionName,
		Protocol:      protocol,
		MaxPlayers:    asInt32(players["max"]),
		OnlinePlayers: asInt32(players["online"]),
		OnlineMode:    OnlineModeUnknown,
		Timestamp:     time.Now(),
	}

	for _, key := range moddedMarkerKeys {
		if _, present := payload[key]; present {
			rec.Modded = true
			break
		}
	}

	// Servers with this motd randomize the sample; skip it entirely but
	// keep the rest of the record.
	if description != randomizedSampleMOTD {
		classifySample(players, rec)
	}

	return rec, true
}

// classifySample reads at most maxSampledPlayers entries from the player
// sample, collecting presence entries and inferring the server's online-mode
// from identifier versions: v4 UUIDs are assigned by the session service
// (online), v3 UUIDs are derived from the name (offline). All-zero
// identifiers are anonymous and carry no signal. An identifier matching
// neither scheme marks the whole sample as fabricated.
func classifySample(players map[string]interface{}, rec *Record) {
	sample, _ := players["sample"].([]interface{})
	if len(sample) > maxSampledPlayers {
		sample = sample[:maxSampledPlayers]
	}

	for _, entry := range sample {
		player, _ := entry.(map[string]interface{})
		id, _ := player["id"].(string)
		name, _ := player["name"].(string)

		key := strings.ToLower(strings.ReplaceAll(id, "-", ""))

		u, err := uuid.Parse(key)
		recognized := err == nil && (u.Version() == 3 || u.Version() == 4)

		// Anonymous players carry a nil UUID, which matches neither
		// scheme; they are identified by name instead.
		if !recognized && name != anonymousPlayerName {
			rec.FakeSample = true
		}

		if recognized && rec.OnlineMode != OnlineModeMixed {
			mode := OnlineModeOffline
			if u.Version() == 4 {
				mode = OnlineModeOnline
			}
			if rec.OnlineMode == OnlineModeUnknown {
				rec.OnlineMode = mode
			} else if rec.OnlineMode != mode {
				rec.OnlineMode = OnlineModeMixed
			}
		}

		rec.Players = append(rec.Players, Player{ID: key, Name: name})
	}
}

// asInt32 reads a numeric JSON value, defaulting to zero for anything else.
// Version and player counts are optional decorations, not identity-bearing,
// so hostile out-of-range values degrade to zero rather than wrapping.
func asInt32(v interface{}) int32 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0
		}
		return int32(n)
	case int32:
		return n
	case int64:
		return clampInt64(n)
	case int:
		return clampInt64(int64(n))
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return clampInt64(i)
	default:
		return 0
	}
}

func clampInt64(n int64) int32 {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0
	}
	return int32(n)
}
