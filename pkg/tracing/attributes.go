package tracing

import (
	"encoding/json"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel/attribute"
)

// keyValue converts a captured value into an OpenTelemetry attribute. Nil and
// empty values report false and must not be recorded.
func keyValue(key string, value any) (attribute.KeyValue, bool) {
	switch v := value.(type) {
	case nil:
		return attribute.KeyValue{}, false
	case string:
		return attribute.String(key, v), v != ""
	case *string:
		if v == nil || *v == "" {
			return attribute.KeyValue{}, false
		}
		return attribute.String(key, *v), true
	case bool:
		return attribute.Bool(key, v), true
	case int:
		return attribute.Int(key, v), true
	case int32:
		return attribute.Int64(key, int64(v)), true
	case int64:
		return attribute.Int64(key, v), true
	case uint32:
		return attribute.Int64(key, int64(v)), true
	case float32:
		return attribute.Float64(key, float64(v)), true
	case float64:
		return attribute.Float64(key, v), true
	case []string:
		return attribute.StringSlice(key, v), len(v) > 0
	case []int:
		return attribute.IntSlice(key, v), len(v) > 0
	case []int64:
		return attribute.Int64Slice(key, v), len(v) > 0
	case []bool:
		return attribute.BoolSlice(key, v), len(v) > 0
	case []float64:
		return attribute.Float64Slice(key, v), len(v) > 0
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return attribute.Float64Slice(key, out), len(v) > 0
	case attribute.Value:
		return attribute.KeyValue{Key: attribute.Key(key), Value: v}, v.Type() != attribute.INVALID
	case fmt.Stringer:
		s := v.String()
		return attribute.String(key, s), s != ""
	case error:
		s := v.Error()
		return attribute.String(key, s), s != ""
	}

	data, err := json.Marshal(value)
	if err != nil {
		return attribute.KeyValue{}, false
	}
	switch s := string(data); s {
	case "null", "{}", "[]", `""`:
		return attribute.KeyValue{}, false
	default:
		return attribute.String(key, s), true
	}
}

// pair is one collected attribute
type pair struct {
	key   string
	value any
}

// collect drains attrs into an ordered list where a later value for a key
// replaces the earlier one in place. A panic while producing attrs discards
// everything the sequence produced and is returned as an error.
func collect(attrs iter.Seq2[string, any]) (pairs []pair, err error) {
	if attrs == nil {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			pairs, err = nil, fmt.Errorf("attribute extraction panicked: %v", r)
		}
	}()

	index := make(map[string]int)
	for key, value := range attrs {
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			pairs[i].value = value
			continue
		}
		index[key] = len(pairs)
		pairs = append(pairs, pair{key: key, value: value})
	}
	return pairs, nil
}

// merge appends next onto base, later keys winning
func merge(base, next []pair) []pair {
	if len(base) == 0 {
		return next
	}
	index := make(map[string]int, len(base))
	for i, p := range base {
		index[p.key] = i
	}
	for _, p := range next {
		if i, ok := index[p.key]; ok {
			base[i].value = p.value
			continue
		}
		index[p.key] = len(base)
		base = append(base, p)
	}
	return base
}
