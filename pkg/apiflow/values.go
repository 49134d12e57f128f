package apiflow

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"
)

// maxNestedDepth bounds the recursive search for a named value inside a
// provider response.
const maxNestedDepth = 3

// ExtractRecords pulls the candidate records out of a provider response
// body: a bare array, the data array of an envelope, or the single
// object itself.
func ExtractRecords(body []byte) []map[string]interface{} {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil
	}

	switch v := decoded.(type) {
	case []interface{}:
		return toRecords(v)

	case map[string]interface{}:
		if data, ok := v["data"]; ok {
			switch d := data.(type) {
			case []interface{}:
				return toRecords(d)
			case map[string]interface{}:
				return []map[string]interface{}{d}
			}
		}

		return []map[string]interface{}{v}
	}

	return nil
}

func toRecords(entries []interface{}) []map[string]interface{} {
	var records []map[string]interface{}

	for _, entry := range entries {
		if record, ok := entry.(map[string]interface{}); ok {
			records = append(records, record)
		}
	}

	return records
}

// ExtractValue finds the value for a parameter inside a single record.
// It tries a direct key match, camel/snake spelling variants, a
// bounded-depth nested search, and finally, for foreign keys, any field
// that looks like an identifier.
func ExtractValue(record map[string]interface{}, param string) (interface{}, bool) {
	if value, ok := record[param]; ok {
		return value, true
	}

	for _, variant := range spellingVariants(param) {
		if value, ok := record[variant]; ok {
			return value, true
		}
	}

	for _, variant := range spellingVariants(param) {
		if value, ok := findNested(record, variant, maxNestedDepth); ok {
			return value, true
		}
	}

	if foreignKeyPattern.MatchString(param) || bareKeyPattern.MatchString(param) {
		if value, ok := findAnyIDField(record); ok {
			return value, true
		}
	}

	return nil, false
}

func spellingVariants(name string) []string {
	variants := []string{name, strings.ToLower(name)}

	if snake := camelToSnake(name); snake != name {
		variants = append(variants, snake)
	}

	if camel := snakeToCamel(name); camel != name {
		variants = append(variants, camel)
	}

	return variants
}

func findNested(record map[string]interface{}, key string, depth int) (interface{}, bool) {
	if depth <= 0 {
		return nil, false
	}

	if value, ok := record[key]; ok {
		return value, true
	}

	// Descend in sorted key order so two nested objects carrying the
	// same field always resolve to the same one.
	nestedKeys := make([]string, 0, len(record))
	for name := range record {
		nestedKeys = append(nestedKeys, name)
	}

	sort.Strings(nestedKeys)

	for _, name := range nestedKeys {
		if nested, ok := record[name].(map[string]interface{}); ok {
			if found, ok := findNested(nested, key, depth-1); ok {
				return found, true
			}
		}
	}

	return nil, false
}

func findAnyIDField(record map[string]interface{}) (interface{}, bool) {
	// Deterministic: exact "id" wins, then remaining *id keys in sorted
	// order.
	var idKeys []string

	for key := range record {
		lower := strings.ToLower(key)
		if lower == "id" {
			return record[key], true
		}

		if strings.HasSuffix(lower, "id") {
			idKeys = append(idKeys, key)
		}
	}

	sort.Strings(idKeys)

	if len(idKeys) > 0 {
		return record[idKeys[0]], true
	}

	if data, ok := record["data"]; ok {
		switch d := data.(type) {
		case map[string]interface{}:
			return findAnyIDField(d)
		case []interface{}:
			if len(d) > 0 {
				if first, ok := d[0].(map[string]interface{}); ok {
					return findAnyIDField(first)
				}
			}
		}
	}

	return nil, false
}

func camelToSnake(name string) string {
	var builder strings.Builder

	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				builder.WriteByte('_')
			}

			builder.WriteRune(unicode.ToLower(r))

			continue
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

func snakeToCamel(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) == 1 {
		return name
	}

	var builder strings.Builder

	builder.WriteString(parts[0])

	for _, part := range parts[1:] {
		if part == "" {
			continue
		}

		builder.WriteString(strings.ToUpper(part[:1]))
		builder.WriteString(part[1:])
	}

	return builder.String()
}
