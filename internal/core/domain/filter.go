package domain

import (
	"fmt"
	"sort"
	"strings"
)

// QueryFilter maps a metadata field to the values it may take.
// One value is an exact match; several values mean set membership.
// Fields absent from the filter are unconstrained.
type QueryFilter map[string][]string

// ParseFilter builds a QueryFilter from a loosely typed mapping as
// received by transports. Scalars become exact matches and lists become
// sets. Values are trimmed of surrounding whitespace. Nested structures
// are rejected with ErrInvalidArgument.
func ParseFilter(raw map[string]any) (QueryFilter, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	f := make(QueryFilter, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			return nil, fmt.Errorf("%w: empty filter field", ErrInvalidArgument)
		}
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				s, ok := CanonicalString(item)
				if !ok {
					return nil, fmt.Errorf("%w: filter %q: unsupported value %v", ErrInvalidArgument, key, item)
				}
				f.add(key, s)
			}
		case []string:
			for _, s := range val {
				f.add(key, s)
			}
		default:
			s, ok := CanonicalString(v)
			if !ok {
				return nil, fmt.Errorf("%w: filter %q: unsupported value %v", ErrInvalidArgument, key, v)
			}
			f.add(key, s)
		}
		if len(f[key]) == 0 {
			return nil, fmt.Errorf("%w: filter %q has no values", ErrInvalidArgument, key)
		}
	}
	return f, nil
}

// add appends a value trimmed the same way metadata values are; blank
// values are dropped.
func (f QueryFilter) add(field, value string) {
	if value = strings.TrimSpace(value); value != "" {
		f[field] = append(f[field], value)
	}
}

// Matches reports whether metadata satisfies every field of the filter.
// A field missing from the metadata never matches.
func (f QueryFilter) Matches(m Metadata) bool {
	for field, allowed := range f {
		have, ok := m.Values(field)
		if !ok {
			return false
		}
		if !intersects(have, allowed) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the filter constrains nothing.
func (f QueryFilter) IsEmpty() bool {
	return len(f) == 0
}

// Fields returns the constrained field names in sorted order.
func (f QueryFilter) Fields() []string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

func intersects(have, allowed []string) bool {
	for _, h := range have {
		for _, a := range allowed {
			if h == a {
				return true
			}
		}
	}
	return false
}
