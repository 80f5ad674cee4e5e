package domain

import "strings"

// Encryption labels reported by the discovery feed for networks without a key
const (
	EncryptionOpen    = "open"
	EncryptionNone    = "none"
	EncryptionUnknown = "unknown"
)

// AccessPoint is one candidate network delivered by the discovery feed.
// It is transient: the feed supplies a fresh list every cycle.
type AccessPoint struct {
	// SSID is the network identifier (feed hostname, falling back to ssid)
	SSID string `json:"ssid"`
	// Encryption is the raw encryption label (OPEN, WPA2, ...)
	Encryption string `json:"encryption"`
	// Raw holds the remaining feed attributes (mac, channel, rssi, vendor)
	Raw map[string]any `json:"raw,omitempty"`
}

// NewAccessPoint builds an AccessPoint from a raw feed record.
// The identifier prefers "hostname" and falls back to "ssid".
func NewAccessPoint(record map[string]any) AccessPoint {
	ap := AccessPoint{
		SSID:       firstString(record, "hostname", "ssid"),
		Encryption: firstString(record, "encryption"),
		Raw:        record,
	}
	if ap.Encryption == "" {
		ap.Encryption = EncryptionUnknown
	}
	return ap
}

// IsOpen reports whether the network can be joined without a key
func (ap AccessPoint) IsOpen() bool {
	switch strings.ToLower(strings.TrimSpace(ap.Encryption)) {
	case EncryptionOpen, EncryptionNone:
		return true
	default:
		return false
	}
}

// HasIdentifier reports whether the access point carries a usable SSID
func (ap AccessPoint) HasIdentifier() bool {
	return strings.TrimSpace(ap.SSID) != ""
}

func firstString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := record[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
