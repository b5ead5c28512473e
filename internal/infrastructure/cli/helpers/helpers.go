package helpers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
)

// ====================================================================================
// Config Helpers
// ====================================================================================

// ConfigAsMap round-trips the config through YAML so keys can be addressed
// by their file names.
func ConfigAsMap(cfg domain.Config) (map[string]interface{}, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TraverseNestedMap retrieves a value from a nested map using a key path
// Returns the value and true if found, nil and false otherwise
func TraverseNestedMap(data interface{}, keyPath []string) (interface{}, bool) {
	if len(keyPath) == 0 {
		return data, true
	}

	switch node := data.(type) {
	case map[string]interface{}:
		next, exists := node[keyPath[0]]
		if !exists {
			return nil, false
		}
		return TraverseNestedMap(next, keyPath[1:])
	default:
		return nil, false
	}
}

// ====================================================================================
// Record Helpers
// ====================================================================================

// ParseRecordHex accepts a hex record with optional spaces, colons or 0x.
func ParseRecordHex(input string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(strings.TrimSpace(input))
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("record is not valid hex: %w", err)
	}
	return data, nil
}

// ExplainDecodeError names the check a record failed.
func ExplainDecodeError(err error) string {
	var mismatch *domain.ChecksumMismatchError
	switch {
	case err == nil:
		return "record is intact"
	case errors.Is(err, descriptor.ErrInvalidLength):
		return fmt.Sprintf("length check failed: a descriptor is exactly %d bytes", descriptor.Size)
	case errors.As(err, &mismatch):
		return fmt.Sprintf("checksum check failed: stored %08x, computed %08x; the record was altered or corrupted", mismatch.Stored, mismatch.Computed)
	case errors.Is(err, descriptor.ErrBadMagic):
		return "magic check failed: record does not start with \"TCP\""
	case errors.Is(err, descriptor.ErrUnsupportedVersion):
		return "version check failed: unsupported format version"
	case errors.Is(err, descriptor.ErrInvalidLevel):
		return "level check failed: risk level out of range"
	default:
		return err.Error()
	}
}
