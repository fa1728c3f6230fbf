package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// PayloadHash computes the stable identity digest of one telemetry
// payload: sha256 over (tenant, device serial, device timestamp, raw
// payload), hex encoded. Two polls returning byte-identical payloads for
// the same device produce the same hash.
func PayloadHash(tenantID uint, deviceSerial string, deviceTimestamp *string, rawPayload []byte) string {
	ts := ""
	if deviceTimestamp != nil {
		ts = *deviceTimestamp
	}

	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|", tenantID, deviceSerial, ts)
	h.Write(rawPayload)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeBaseURL trims trailing slashes and guarantees the URL ends in
// an API version segment, appending /v1 when none is present
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return base
	}

	segments := strings.Split(base, "/")
	if isVersionSegment(segments[len(segments)-1]) {
		return base
	}
	return base + "/v1"
}

// isVersionSegment reports whether a path segment looks like "v1", "v2", ...
func isVersionSegment(s string) bool {
	if len(s) < 2 || (s[0] != 'v' && s[0] != 'V') {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
