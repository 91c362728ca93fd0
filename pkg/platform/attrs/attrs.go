// Package attrs reads values back out of slog-style key/value argument lists.
package attrs

import "fmt"

// ExtractString returns the value following key in a flat key/value list.
// Non-string values are formatted with %v; a missing key yields "".
func ExtractString(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
