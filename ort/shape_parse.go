package ort

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseShape parses a comma-separated shape string (for example: "1,384").
func ParseShape(raw string) (Shape, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("shape is empty")
	}

	parts := strings.Split(raw, ",")
	shape := make(Shape, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty dimension in %q", raw)
		}

		dim, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dimension %q: %w", part, err)
		}
		if dim < 0 {
			return nil, fmt.Errorf("negative dimension %d", dim)
		}
		shape = append(shape, dim)
	}

	return shape, nil
}

// ParseNamedShape parses "name=d0,d1,..." as used by shape override flags.
func ParseNamedShape(raw string) (string, Shape, error) {
	name, dims, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("shape override %q must have the form name=d0,d1,...", raw)
	}
	shape, err := ParseShape(dims)
	if err != nil {
		return "", nil, fmt.Errorf("shape override for %q: %w", name, err)
	}
	return name, shape, nil
}

// String formats the shape as "[d0 d1 ...]"; symbolic dimensions print as -1.
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, dim := range s {
		parts[i] = strconv.FormatInt(dim, 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
