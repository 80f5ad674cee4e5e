// Package codec renders scan session history in export formats.
package codec

import (
	"fmt"
	"io"
	"strings"

	"wifiscout/internal/domain"
)

// Exporter writes sessions in one format
type Exporter interface {
	Export(sessions []domain.ScanSession, w io.Writer) error
	Format() string
	ContentType() string
}

// ForFormat returns the exporter for name. An empty name selects JSON.
func ForFormat(name string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", name)
	}
}
