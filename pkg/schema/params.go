package schema

import "sort"

// Schema maps condition parameter names to their expected types.
// Every listed parameter is required; unlisted ones are ignored.
type Schema map[string]Type

// ConditionSchemas maps a condition type to the schema of its parameters.
// Condition types without an entry are not checked.
type ConditionSchemas map[string]Schema

// ParseConditionSchemas builds ConditionSchemas from type strings, as found
// in configuration files.
func ParseConditionSchemas(raw map[string]map[string]string) (ConditionSchemas, error) {
	out := make(ConditionSchemas, len(raw))
	for typ, fields := range raw {
		s, err := ParseTypeMap(fields)
		if err != nil {
			return nil, err
		}
		out[typ] = s
	}
	return out, nil
}

// Validate checks params against s and reports every failure at once.
func Validate(s Schema, params map[string]any) error {
	c := &collector{}
	validateParams(c, "params", s, params)
	return c.err()
}

func validateParams(c *collector, prefix string, s Schema, params map[string]any) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok := params[k]
		if !ok {
			c.add(prefix+"."+k, "required", nil)
			continue
		}
		if err := s[k].Validate(v); err != nil {
			c.add(prefix+"."+k, err.Error(), v)
		}
	}
}
