package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Recognised metadata keys for legal documents.
const (
	MetaECLI          = "ecli"
	MetaTribunal      = "tribunal"
	MetaSala          = "sala"
	MetaFecha         = "fecha"
	MetaProcedimiento = "procedimiento"
	MetaPonente       = "ponente"
	MetaMateria       = "materia"
	MetaResultado     = "resultado"
	MetaOrigen        = "origen"
	MetaFilename      = "filename"
	MetaCategory      = "category"
	MetaCaseID        = "case_id"
)

// System keys stamped on every chunk during ingestion.
const (
	MetaDocID      = "doc_id"
	MetaChunkIndex = "chunk_index"
)

// MaxSetSize bounds the number of values a set-valued field may hold.
const MaxSetSize = 32

var recognisedKeys = map[string]struct{}{
	MetaECLI: {}, MetaTribunal: {}, MetaSala: {}, MetaFecha: {},
	MetaProcedimiento: {}, MetaPonente: {}, MetaMateria: {}, MetaResultado: {},
	MetaOrigen: {}, MetaFilename: {}, MetaCategory: {}, MetaCaseID: {},
}

// RecognisedKeys returns the documented metadata keys in sorted order.
func RecognisedKeys() []string {
	keys := make([]string, 0, len(recognisedKeys))
	for k := range recognisedKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsRecognisedKey reports whether key belongs to the documented schema.
func IsRecognisedKey(key string) bool {
	_, ok := recognisedKeys[key]
	return ok
}

// Metadata holds normalised attributes. Values are string, int64,
// float64, bool or []string; nothing is nested.
type Metadata map[string]any

// NormaliseMetadata converts a loosely typed bag (decoded JSON or YAML)
// into Metadata. Keys are trimmed and lower-cased. Recognised keys are
// coerced to strings. Nested maps, nulls, empty strings and lists that
// contain non-scalars or exceed MaxSetSize are dropped.
func NormaliseMetadata(raw map[string]any) Metadata {
	out := make(Metadata, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if val, ok := normaliseValue(v, IsRecognisedKey(key)); ok {
			out[key] = val
		}
	}
	return out
}

func normaliseValue(v any, asString bool) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []string:
		items := make([]any, len(val))
		for i := range val {
			items[i] = val[i]
		}
		return normaliseList(items)
	case []any:
		return normaliseList(val)
	}

	s, ok := CanonicalString(v)
	if !ok {
		return nil, false
	}
	if asString {
		s = strings.TrimSpace(s)
		return s, s != ""
	}

	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
		return s, s != ""
	case bool:
		return val, true
	case float32:
		return normaliseFloat(float64(val))
	case float64:
		return normaliseFloat(val)
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return s, true
		}
		return n, true
	}
}

func normaliseFloat(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f), true
	}
	return f, true
}

func normaliseList(items []any) (any, bool) {
	if len(items) == 0 || len(items) > MaxSetSize {
		return nil, false
	}
	seen := make(map[string]struct{}, len(items))
	set := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := CanonicalString(item)
		if !ok {
			return nil, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		set = append(set, s)
	}
	if len(set) == 0 {
		return nil, false
	}
	return set, true
}

// CanonicalString returns the string form used for filter matching.
// It reports false for values that are not scalars.
func CanonicalString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Clone returns a shallow copy; set values are copied too.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		if set, ok := v.([]string); ok {
			v = append([]string(nil), set...)
		}
		out[k] = v
	}
	return out
}

// String returns the canonical string form of key, or "" when absent.
func (m Metadata) String(key string) string {
	vals, ok := m.Values(key)
	if !ok || len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Values returns the canonical string forms stored under key.
// Scalars yield a single element.
func (m Metadata) Values(key string) ([]string, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	if set, ok := v.([]string); ok {
		return set, true
	}
	s, ok := CanonicalString(v)
	if !ok {
		return nil, false
	}
	return []string{s}, true
}

// Flatten renders every field as a string, joining sets with ", ".
func (m Metadata) Flatten() map[string]string {
	out := make(map[string]string, len(m))
	for k := range m {
		vals, ok := m.Values(k)
		if !ok {
			continue
		}
		out[k] = strings.Join(vals, ", ")
	}
	return out
}
