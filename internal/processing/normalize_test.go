package processing

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	uuidV4A = "22222222-2222-4222-8222-222222222222"
	uuidV4B = "069a79f4-44e9-4726-a5be-fca90e38aaf5"
	uuidV3A = "11111111-1111-3111-8111-111111111111"
	uuidNil = "00000000-0000-0000-0000-000000000000"
)

func samplePayload(sample string) []byte {
	return []byte(fmt.Sprintf(`{
		"description": "A Minecraft Server",
		"version": {"name": "1.20.4", "protocol": 765},
		"players": {"max": 20, "online": 2, "sample": %s}
	}`, sample))
}

func TestNormalizeRejectsNonStatusPayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty payload", ""},
		{"not json", "ssh-2.0-openssh_8.9\r\n"},
		{"json but not an object", `[1, 2, 3]`},
		{"no description", `{"version": {"name": "1.20.4", "protocol": 765}}`},
		{"numeric description", `{"description": 42}`},
		{"null description", `{"description": null}`},
		{"component tree with bad node", `{"description": {"text": "hi", "extra": [7]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Normalize([]byte(tt.raw))
			assert.False(t, ok)
			assert.Nil(t, rec)
		})
	}
}

func TestNormalizeRejectsKnownSignatures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			"parked hosting banner",
			`{"description": "Craftserve.pl - wydajny hosting Minecraft! Zapraszamy"}`,
		},
		{
			"scan shield version name",
			`{"description": "hello", "version": {"name": "TCPShield.com", "protocol": 765}}`,
		},
		{
			"cosmic guard version name",
			`{"description": "hello", "version": {"name": "COSMIC GUARD", "protocol": 765}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Normalize([]byte(tt.raw))
			assert.False(t, ok)
		})
	}
}

func TestNormalizeFlattensDescription(t *testing.T) {
	raw := `{
		"description": {
			"text": "§6Welcome ",
			"extra": [{"text": "§lhome"}, " friend"]
		}
	}`

	rec, ok := Normalize([]byte(raw))
	require.True(t, ok)
	assert.Equal(t, "Welcome home friend", rec.Description)
}

func TestNormalizeDefaultsOptionalFields(t *testing.T) {
	rec, ok := Normalize([]byte(`{"description": "bare"}`))
	require.True(t, ok)

	assert.Equal(t, "bare", rec.Description)
	assert.Empty(t, rec.VersionName)
	assert.Zero(t, rec.Protocol)
	assert.Zero(t, rec.MaxPlayers)
	assert.Zero(t, rec.OnlinePlayers)
	assert.False(t, rec.Modded)
	assert.Equal(t, OnlineModeUnknown, rec.OnlineMode)
}

func TestNormalizeModdedMarkers(t *testing.T) {
	for _, key := range []string{"modinfo", "forgeData", "modpackData"} {
		t.Run(key, func(t *testing.T) {
			raw := fmt.Sprintf(`{"description": "modded", %q: {}}`, key)
			rec, ok := Normalize([]byte(raw))
			require.True(t, ok)
			assert.True(t, rec.Modded)
		})
	}
}

func TestNormalizeOnlineModeClassification(t *testing.T) {
	tests := []struct {
		name   string
		sample string
		mode   OnlineMode
		fake   bool
	}{
		{
			"all v4 means online",
			fmt.Sprintf(`[{"id": %q, "name": "a"}, {"id": %q, "name": "b"}]`, uuidV4A, uuidV4B),
			OnlineModeOnline,
			false,
		},
		{
			"all v3 means offline",
			fmt.Sprintf(`[{"id": %q, "name": "a"}]`, uuidV3A),
			OnlineModeOffline,
			false,
		},
		{
			"disagreeing sample is mixed",
			fmt.Sprintf(`[{"id": %q, "name": "a"}, {"id": %q, "name": "b"}]`, uuidV4A, uuidV3A),
			OnlineModeMixed,
			false,
		},
		{
			"nil ids carry no signal",
			fmt.Sprintf(`[{"id": %q, "name": "Anonymous Player"}, {"id": %q, "name": "b"}]`, uuidNil, uuidV3A),
			OnlineModeOffline,
			false,
		},
		{
			"unrecognized id flags the sample as fake",
			fmt.Sprintf(`[{"id": "not-a-uuid", "name": "x"}, {"id": %q, "name": "b"}]`, uuidV4A),
			OnlineModeOnline,
			true,
		},
		{
			"nil id with anonymous name is tolerated",
			fmt.Sprintf(`[{"id": %q, "name": "Anonymous Player"}]`, uuidNil),
			OnlineModeUnknown,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := Normalize(samplePayload(tt.sample))
			require.True(t, ok)
			assert.Equal(t, tt.mode, rec.OnlineMode)
			assert.Equal(t, tt.fake, rec.FakeSample)
		})
	}
}

func TestNormalizeMixedSampleStoresNoBoolean(t *testing.T) {
	rec, ok := Normalize(samplePayload(
		fmt.Sprintf(`[{"id": %q, "name": "a"}, {"id": %q, "name": "b"}]`, uuidV4A, uuidV3A)))
	require.True(t, ok)
	require.Equal(t, OnlineModeMixed, rec.OnlineMode)

	fields := rec.Fields()
	_, present := fields["onlineMode"]
	assert.False(t, present, "mixed online mode must never assert a boolean")
}

func TestNormalizeFakeSampleSuppressesPlayerFields(t *testing.T) {
	rec, ok := Normalize(samplePayload(`[{"id": "garbage", "name": "x"}]`))
	require.True(t, ok)
	require.True(t, rec.FakeSample)

	fields := rec.Fields()

	// Non-player fields survive.
	assert.Equal(t, "A Minecraft Server", fields["description"])
	assert.Equal(t, "1.20.4", fields["version"])
	assert.Equal(t, int32(765), fields["protocol"])
	assert.Equal(t, int32(20), fields["maxPlayers"])
	assert.Contains(t, fields, "lastSeen")

	// Player-derived fields are suppressed entirely.
	assert.NotContains(t, fields, "onlineMode")
	assert.NotContains(t, fields, "lastActive")
	assert.NotContains(t, fields, "lastEmpty")
	for key := range fields {
		assert.NotContains(t, key, "players.")
	}
}

func TestNormalizeRandomizedSampleMOTD(t *testing.T) {
	raw, err := json.Marshal(map[string]interface{}{
		"description": randomizedSampleMOTD,
		"players": map[string]interface{}{
			"max": 20, "online": 3,
			"sample": []map[string]interface{}{{"id": uuidV4A, "name": "ghost"}},
		},
	})
	require.NoError(t, err)

	rec, ok := Normalize(raw)
	require.True(t, ok)

	// The sample is ignored wholesale, but everything else is kept.
	assert.Empty(t, rec.Players)
	assert.False(t, rec.FakeSample)
	assert.Equal(t, OnlineModeUnknown, rec.OnlineMode)
	assert.Equal(t, int32(3), rec.OnlinePlayers)

	fields := rec.Fields()
	assert.Contains(t, fields, "lastEmpty")
	assert.NotContains(t, fields, "lastActive")
}

func TestNormalizeCapsPlayerSample(t *testing.T) {
	entries := make([]map[string]interface{}, 150)
	for i := range entries {
		entries[i] = map[string]interface{}{"id": uuidV4A, "name": fmt.Sprintf("p%d", i)}
	}
	raw, err := json.Marshal(map[string]interface{}{
		"description": "busy",
		"players":     map[string]interface{}{"sample": entries},
	})
	require.NoError(t, err)

	rec, ok := Normalize(raw)
	require.True(t, ok)
	assert.Len(t, rec.Players, maxSampledPlayers)
}

func TestNormalizeZeroesOutOfRangeCounts(t *testing.T) {
	raw := `{
		"description": "hostile",
		"version": {"name": "x", "protocol": 9e18},
		"players": {"max": 1e12, "online": -1e12}
	}`

	rec, ok := Normalize([]byte(raw))
	require.True(t, ok)

	// Values outside int32 degrade to zero instead of wrapping.
	assert.Zero(t, rec.Protocol)
	assert.Zero(t, rec.MaxPlayers)
	assert.Zero(t, rec.OnlinePlayers)
}

func TestNormalizeActivityTimestamps(t *testing.T) {
	t.Run("populated sample stamps lastActive", func(t *testing.T) {
		rec, ok := Normalize(samplePayload(fmt.Sprintf(`[{"id": %q, "name": "a"}]`, uuidV4A)))
		require.True(t, ok)

		fields := rec.Fields()
		assert.Contains(t, fields, "lastActive")
		assert.NotContains(t, fields, "lastEmpty")
		assert.Contains(t, fields, "lastSeen")
	})

	t.Run("empty sample stamps lastEmpty", func(t *testing.T) {
		rec, ok := Normalize(samplePayload(`[]`))
		require.True(t, ok)

		fields := rec.Fields()
		assert.Contains(t, fields, "lastEmpty")
		assert.NotContains(t, fields, "lastActive")
		assert.Contains(t, fields, "lastSeen")
	})
}

func TestNormalizePlayerEntries(t *testing.T) {
	rec, ok := Normalize(samplePayload(fmt.Sprintf(`[{"id": %q, "name": "Notch"}]`, uuidV4B)))
	require.True(t, ok)
	require.Len(t, rec.Players, 1)

	assert.Equal(t, "069a79f444e94726a5befca90e38aaf5", rec.Players[0].ID)
	assert.Equal(t, "Notch", rec.Players[0].Name)

	fields := rec.Fields()
	assert.Contains(t, fields, "players.069a79f444e94726a5befca90e38aaf5")
}
