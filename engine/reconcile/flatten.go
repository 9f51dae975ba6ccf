package reconcile

import (
	"fmt"
	"strings"
)

var entryKeys = []string{"description", "message", "text", "id"}

// Flatten turns the loosely typed issue or suggestion list a model returns
// into plain strings. Objects yield their first non-empty description,
// message, text or id field; other entries are formatted as-is; empty
// results are dropped.
func Flatten(entries []any) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		var s string
		switch v := e.(type) {
		case string:
			s = v
		case map[string]any:
			for _, k := range entryKeys {
				if x, ok := v[k]; ok && x != nil {
					if s = strings.TrimSpace(fmt.Sprint(x)); s != "" {
						break
					}
				}
			}
		case nil:
		default:
			s = fmt.Sprint(v)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
