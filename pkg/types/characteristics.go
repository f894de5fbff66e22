package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Well-known characteristic keys. Any other key is kept as-is.
const (
	CharacteristicBrand  = "brand"
	CharacteristicColor  = "color"
	CharacteristicWidth  = "width"
	CharacteristicHeight = "height"
	CharacteristicGender = "gender"
	CharacteristicType   = "type"
)

// Characteristics is the free-form attribute map of a product, persisted as
// JSONB (TEXT on sqlite).
type Characteristics map[string]string

// Get returns the trimmed value for key.
func (c Characteristics) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}

// Missing lists the required keys that are absent or blank.
func (c Characteristics) Missing(required ...string) []string {
	var missing []string
	for _, key := range required {
		if c.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Value marshals the map into JSON.
func (c Characteristics) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the stored JSON into the map.
func (c *Characteristics) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("characteristics: unsupported scan type %T", value)
	}

	result := make(Characteristics)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*c = result
	return nil
}
