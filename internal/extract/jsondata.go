package extract

import (
	"encoding/json"
	"regexp"
)

// Listing pages embed their render state as JSON assigned to a handful of
// well-known globals. The patterns are tried in order of specificity; the last
// one catches any small object that names a product field.
var jsonBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__INIT_DATA__\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)var offer\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)window\.__GLOBAL_DATA\s*=\s*(\{.*?\});`),
	regexp.MustCompile(`(?s)"offerData"\s*:\s*(\{.*?\}),`),
}

var productObjectPattern = regexp.MustCompile(`\{[^{]*?"product(?:Name|Title|Info)"[^}]*?\}`)

// embeddedJSON scans raw markup for inline structured data and returns the
// first block that parses. A block that matches but fails to parse is skipped,
// not fatal.
func embeddedJSON(html string) map[string]any {
	for _, pattern := range jsonBlockPatterns {
		m := pattern.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(m[1]), &data); err == nil {
			return data
		}
	}

	if m := productObjectPattern.FindString(html); m != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(m), &data); err == nil {
			return data
		}
	}

	return nil
}

// jsonString looks up the first non-empty string-convertible value under any
// of the given key aliases.
func jsonString(data map[string]any, keys ...string) (string, bool) {
	if data == nil {
		return "", false
	}
	for _, key := range keys {
		v, ok := data[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val, true
			}
		case float64:
			return trimFloat(val), true
		}
	}
	return "", false
}

// jsonMapping flattens a value found under the given key aliases into a
// string-to-string map. Both dict-shaped values and lists of {name, value}
// objects are accepted, matching the shapes the marketplaces actually emit.
func jsonMapping(data map[string]any, keys ...string) map[string]string {
	if data == nil {
		return nil
	}
	for _, key := range keys {
		v, ok := data[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]string)
			for k, item := range val {
				switch s := item.(type) {
				case string:
					out[k] = s
				case float64:
					out[k] = trimFloat(s)
				case bool:
					if s {
						out[k] = "true"
					} else {
						out[k] = "false"
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		case []any:
			out := make(map[string]string)
			for _, item := range val {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				name, _ := entry["name"].(string)
				value, _ := entry["value"].(string)
				if name != "" && value != "" {
					out[name] = value
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func trimFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
