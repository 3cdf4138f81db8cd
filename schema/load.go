package schema

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a schema document from JSON.
func ParseJSON(data []byte) (*Schema, error) {
	var s Schema
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}
	return &s, nil
}

// ParseYAML decodes a schema document from YAML.
func ParseYAML(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	return &s, nil
}

// Parse decodes a schema document, sniffing JSON vs YAML from the first
// non-space byte. Builder UIs emit JSON; hand-written fixtures tend to be
// YAML.
func Parse(data []byte) (*Schema, error) {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// MarshalJSON serialises a schema document back to JSON. Function-valued
// members (custom validators, cross-field checks) are code-side only and are
// not round-tripped.
func MarshalJSON(s *Schema) ([]byte, error) {
	data, err := sonic.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
