// Package loader reads the flat credential lists that steer network selection.
//
// Two files live in the data directory:
//
//	ssid_noscan.txt  one SSID per line, never joined
//	ssid_known.txt   "SSID passphrase" per line, joined before open networks
//
// Missing files are created with sample content on first run. Unreadable
// files degrade to empty lists; startup never fails because of them.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"wifiscout/internal/domain"
)

// DefaultSkipList is written when no skip list exists
var DefaultSkipList = []string{
	"Club_Totalplay_WiFi",
	"Megacable Gratis",
	"CASINO_HERMOSILLO",
}

// DefaultKnownNetworks is the sample written when no known networks file exists
var DefaultKnownNetworks = []domain.KnownNetwork{
	{SSID: "Totalplay-CCCX", Passphrase: "PASSWORD123"},
	{SSID: "MiRedCasa123", Passphrase: "pa55w0rd"},
	{SSID: "CafeteriaLibre", Passphrase: "12345678"},
}

// Paths locates the two credential files
type Paths struct {
	SkipList      string
	KnownNetworks string
}

// LoadCredentials materializes missing files and parses both lists.
// Parse and read failures are logged and yield empty lists.
func LoadCredentials(paths Paths, log logrus.FieldLogger) *domain.CredentialSet {
	if err := ensureFile(paths.SkipList, renderSkipList(DefaultSkipList)); err != nil {
		log.WithError(err).Warn("Loader: could not create default skip list")
	}
	if err := ensureFile(paths.KnownNetworks, renderKnownNetworks(DefaultKnownNetworks)); err != nil {
		log.WithError(err).Warn("Loader: could not create default known networks")
	}

	skip, err := readSkipList(paths.SkipList)
	if err != nil {
		log.WithError(err).Error("Loader: skip list unavailable, using empty list")
		skip = nil
	}

	known, err := readKnownNetworks(paths.KnownNetworks)
	if err != nil {
		log.WithError(err).Error("Loader: known networks unavailable, using empty list")
		known = nil
	}

	set := domain.NewCredentialSet(skip, known)
	log.WithFields(logrus.Fields{
		"skipped": set.SkipCount(),
		"known":   set.KnownCount(),
	}).Info("Loader: credentials loaded")
	return set
}

func readSkipList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConfigLoadError{Path: path, Err: err}
	}
	defer f.Close()

	skip, err := ParseSkipList(f)
	if err != nil {
		return nil, &domain.ConfigLoadError{Path: path, Err: err}
	}
	return skip, nil
}

func readKnownNetworks(path string) ([]domain.KnownNetwork, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ConfigLoadError{Path: path, Err: err}
	}
	defer f.Close()

	known, err := ParseKnownNetworks(f)
	if err != nil {
		return nil, &domain.ConfigLoadError{Path: path, Err: err}
	}
	return known, nil
}

// ParseSkipList reads one SSID per line. Blank lines and # comments are
// ignored; surrounding whitespace is trimmed, inner spaces are kept.
func ParseSkipList(r io.Reader) ([]string, error) {
	var skip []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		skip = append(skip, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read skip list: %w", err)
	}
	return skip, nil
}

// ParseKnownNetworks reads "SSID passphrase" lines. The SSID ends at the
// first whitespace run; the rest of the line is the passphrase. Lines
// without a passphrase are ignored.
func ParseKnownNetworks(r io.Reader) ([]domain.KnownNetwork, error) {
	var known []domain.KnownNetwork
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexAny(line, " \t")
		if idx < 0 {
			continue
		}
		passphrase := strings.TrimSpace(line[idx:])
		if passphrase == "" {
			continue
		}
		known = append(known, domain.KnownNetwork{
			SSID:       line[:idx],
			Passphrase: passphrase,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read known networks: %w", err)
	}
	return known, nil
}

func ensureFile(path, content string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	// Known networks hold passphrases
	return os.WriteFile(path, []byte(content), 0600)
}

func renderSkipList(ssids []string) string {
	var b strings.Builder
	for _, ssid := range ssids {
		b.WriteString(ssid)
		b.WriteByte('\n')
	}
	return b.String()
}

func renderKnownNetworks(known []domain.KnownNetwork) string {
	var b strings.Builder
	for _, kn := range known {
		fmt.Fprintf(&b, "%s %s\n", kn.SSID, kn.Passphrase)
	}
	return b.String()
}
