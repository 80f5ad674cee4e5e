package connect

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"

	"wifiscout/internal/domain"
)

const (
	minPassphrase = 8
	maxPassphrase = 63
	maxSSIDBytes  = 32
)

// DerivePSK returns the 256-bit WPA pre-shared key for passphrase and ssid
// as 64 hex characters, the same value wpa_passphrase prints
func DerivePSK(passphrase, ssid string) string {
	key := pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New)
	return hex.EncodeToString(key)
}

// ProfileFor renders a wpa_supplicant network block for ssid.
// A nil passphrase produces an open (key_mgmt=NONE) profile. Errors wrap
// domain.ErrUnjoinable: the same input fails the same way every time.
func ProfileFor(ssid string, passphrase *string) (string, error) {
	switch {
	case ssid == "":
		return "", fmt.Errorf("%w: empty SSID", domain.ErrUnjoinable)
	case len(ssid) > maxSSIDBytes:
		return "", fmt.Errorf("%w: SSID longer than %d bytes", domain.ErrUnjoinable, maxSSIDBytes)
	}

	var b strings.Builder
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "\tssid=%s\n", ssidValue(ssid))
	if passphrase == nil {
		b.WriteString("\tkey_mgmt=NONE\n")
	} else {
		if err := validatePassphrase(*passphrase); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\tpsk=%s\n", DerivePSK(*passphrase, ssid))
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// ssidValue returns a quoted string when wpa_supplicant reads it back
// verbatim, otherwise the raw SSID bytes as unquoted hex
func ssidValue(ssid string) string {
	if !utf8.ValidString(ssid) || strings.ContainsAny(ssid, "\"\\") {
		return hex.EncodeToString([]byte(ssid))
	}
	for _, r := range ssid {
		if unicode.IsControl(r) {
			return hex.EncodeToString([]byte(ssid))
		}
	}
	return `"` + ssid + `"`
}

// validatePassphrase enforces the WPA passphrase rule: 8 to 63 printable ASCII characters
func validatePassphrase(p string) error {
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] > 0x7e {
			return fmt.Errorf("%w: passphrase must be printable ASCII", domain.ErrUnjoinable)
		}
	}
	if n := len(p); n < minPassphrase || n > maxPassphrase {
		return fmt.Errorf("%w: passphrase must be %d to %d characters, got %d",
			domain.ErrUnjoinable, minPassphrase, maxPassphrase, n)
	}
	return nil
}
