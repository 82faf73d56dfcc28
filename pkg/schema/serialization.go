package schema

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON writes the schema as parameter names mapped to type strings.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw := make(map[string]string, len(s))
	for key, t := range s {
		if t == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = t.Name()
	}
	return json.Marshal(raw)
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if raw == nil {
		*s = nil
		return nil
	}
	parsed, err := ParseTypeMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
