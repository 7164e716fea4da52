package buildplan

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Canonicalize returns a canonical JSON representation of a plan with stable
// key ordering for consistent hashing. The fingerprint field itself is
// excluded so hashing a stamped plan reproduces the stamp.
func Canonicalize(plan *BuildPlan) ([]byte, error) {
	stripped := plan.Clone()
	stripped.Fingerprint = ""

	raw, err := json.Marshal(stripped)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}

	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("reparse plan: %w", err)
	}

	return json.Marshal(sortKeys(tree))
}

// Fingerprint computes the blake3 hash of a canonicalized plan
func Fingerprint(plan *BuildPlan) (string, error) {
	canonical, err := Canonicalize(plan)
	if err != nil {
		return "", fmt.Errorf("canonicalize plan: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash plan: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// sortKeys recursively sorts map keys for stable JSON output
func sortKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sorted := make(map[string]interface{}, len(val))
		for _, k := range keys {
			sorted[k] = sortKeys(val[k])
		}
		return sorted

	case []interface{}:
		for i, item := range val {
			val[i] = sortKeys(item)
		}
		return val

	default:
		return v
	}
}
