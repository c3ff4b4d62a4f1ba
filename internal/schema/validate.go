package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

const (
	reasonMissing  = "missing data for required field"
	reasonNull     = "field may not be null"
	reasonEmptyKey = "empty key"
)

// Validate checks raw against the schema and returns the typed values.
// Every failing field is collected into a single *ValidationError.
func (s *Schema) Validate(raw map[string]any) (*Result, error) {
	verr := &ValidationError{Schema: s.Name}
	res := s.validate(raw, "", verr)
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return res, nil
}

func (s *Schema) validate(raw map[string]any, prefix string, verr *ValidationError) *Result {
	res := newResult(s)

	for _, f := range s.Fields {
		path := prefix + f.Name
		value, present := raw[f.Key()]

		if !present {
			if f.Required {
				verr.add(path, reasonMissing)
				continue
			}
			if f.Default == nil {
				continue
			}
			value = f.Default()
		}

		if value == nil {
			if !f.AllowNull {
				verr.add(path, reasonNull)
			}
			continue
		}

		switch f.Kind {
		case KindPrimaryKey:
			key, err := toKey(value)
			if err != nil {
				verr.add(path, err.Error())
				continue
			}
			res.PrimaryKey = key
			res.values[f.Name] = key

		case KindDependency:
			keys, err := toKeys(value, f.Many)
			if err != nil {
				verr.add(path, err.Error())
				continue
			}
			res.refs[f.Name] = keys

		case KindNested:
			items, ok := toList(value)
			if !ok {
				verr.add(path, fmt.Sprintf("expected a list, got %T", value))
				continue
			}
			subs := make([]*Result, 0, len(items))
			failed := false
			for i, item := range items {
				m, ok := toMap(item)
				if !ok {
					verr.add(fmt.Sprintf("%s[%d]", path, i), fmt.Sprintf("expected a map, got %T", item))
					failed = true
					break
				}
				before := len(verr.Fields)
				sub := f.Nested.validate(m, fmt.Sprintf("%s[%d].", path, i), verr)
				if len(verr.Fields) > before {
					failed = true
					break
				}
				subs = append(subs, sub)
			}
			if !failed {
				res.nested[f.Name] = subs
			}

		default:
			v, err := convert(f.Kind, value)
			if err != nil {
				verr.add(path, err.Error())
				continue
			}
			res.values[f.Name] = v
		}
	}

	return res
}

// convert checks a primitive value against its declared kind
func convert(kind Kind, value any) (any, error) {
	switch kind {
	case KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case KindInteger:
		if n, ok := toInt(value); ok {
			return n, nil
		}
	case KindBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case KindFloat:
		if f, ok := toFloat(value); ok {
			return f, nil
		}
	case KindMap:
		if m, ok := toMap(value); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("not a valid %s: %v", kind, value)
}

func toInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), uint64(v) <= math.MaxInt64
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float32:
		return toInt(float64(v))
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	if n, ok := toInt(value); ok {
		return float64(n), true
	}
	return 0, false
}

// toMap accepts string-keyed maps, normalising map[any]any from YAML decoders
func toMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	}
	return nil, false
}

// toKey converts a raw primary or foreign key to its string form
func toKey(value any) (string, error) {
	if s, ok := value.(string); ok {
		if s == "" {
			return "", errors.New(reasonEmptyKey)
		}
		return s, nil
	}
	if n, ok := toInt(value); ok {
		return strconv.FormatInt(n, 10), nil
	}
	return "", fmt.Errorf("not a valid key: %v", value)
}

func toKeys(value any, many bool) ([]string, error) {
	if !many {
		key, err := toKey(value)
		if err != nil {
			return nil, err
		}
		return []string{key}, nil
	}
	items, ok := toList(value)
	if !ok {
		return nil, fmt.Errorf("expected a list of keys, got %T", value)
	}
	keys := make([]string, 0, len(items))
	for i, item := range items {
		key, err := toKey(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
