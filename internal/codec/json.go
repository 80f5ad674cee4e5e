package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"wifiscout/internal/domain"
)

// JSONCodec exports sessions as an indented JSON document
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the HTTP content type for the format
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Export writes {"sessions": [...]}
func (c *JSONCodec) Export(sessions []domain.ScanSession, w io.Writer) error {
	if sessions == nil {
		sessions = []domain.ScanSession{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	doc := struct {
		Sessions []domain.ScanSession `json:"sessions"`
	}{Sessions: sessions}

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
