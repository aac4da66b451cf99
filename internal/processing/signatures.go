package processing

import "strings"

// Known honeypot and catch-all signatures. Hosting-provider "parked" banners
// and scan-shield products answer status probes for hosts that are not real
// servers; records matching any of these are dropped before they reach the
// anomaly tracker. This is a data table: extend it here, parsing code stays
// untouched.

// descriptionSignatures are substrings matched against the flattened
// description text.
var descriptionSignatures = []string{
	"Craftserve.pl - wydajny hosting Minecraft!",
	"Ochrona DDoS: Przekroczono limit polaczen.",
	"¨ |  ",
	"Start the server at FalixNodes.net/start",
	"This server is offline Powcered by FalixNodes.net",
	"Serwer jest aktualnie wy",
	"Blad pobierania statusu. Polacz sie bezposrednio!",
}

// versionNameSignatures are exact matches against the advertised version name.
var versionNameSignatures = map[string]struct{}{
	"COSMIC GUARD":  {},
	"TCPShield.com": {},
	"â  Error":      {},
	"⚠ Error":       {},
}

// randomizedSampleMOTD identifies servers known to return randomized fake
// player samples. Their player data is ignored entirely; other fields are
// still recorded.
const randomizedSampleMOTD = "To protect the privacy of this server and its\n" +
	"users, you must log in once to see ping data."

// anonymousPlayerName is the display name vanilla servers use for hidden
// players; these carry a nil UUID and are exempt from fake-sample detection.
const anonymousPlayerName = "Anonymous Player"

// matchesKnownSignature reports whether a response matches any known
// honeypot or catch-all signature.
func matchesKnownSignature(description, versionName string) bool {
	for _, s := range descriptionSignatures {
		if strings.Contains(description, s) {
			return true
		}
	}
	_, ok := versionNameSignatures[versionName]
	return ok
}
