package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseQueryList handles both repeated and comma-separated query params.
// Example:
//
//	?subCategories=5,6           → ["5","6"]
//	?subCategories=5&subCategories=6 → ["5","6"]
func ParseQueryList(q map[string][]string, key string) []string {
	var out []string
	for _, v := range q[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseQueryIntList is ParseQueryList for integer ids.
func ParseQueryIntList(q map[string][]string, key string) ([]int, error) {
	parts := ParseQueryList(q, key)
	if len(parts) == 0 {
		return nil, nil
	}
	ids := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an integer", key, p)
		}
		ids[i] = n
	}
	return ids, nil
}

// ParseQueryFloat returns nil when the key is absent.
func ParseQueryFloat(q map[string][]string, key string) (*float64, error) {
	v := strings.TrimSpace(firstValue(q, key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return &f, nil
}

func firstValue(q map[string][]string, key string) string {
	if vals := q[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}
