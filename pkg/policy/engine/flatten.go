package engine

import "sort"

// opaqueKey names the one nested map that is kept whole when flattening.
const opaqueKey = "files_changed"

// Flatten joins nested maps into dotted keys, so {"a": {"b": 1}} becomes
// {"a.b": 1}. A map stored under the key "files_changed" is not descended
// into and is kept as a single opaque value. Keys are visited in sorted
// order, so a later key wins when two paths flatten to the same name.
func Flatten(data map[string]interface{}) map[string]Value {
	out := make(map[string]Value, len(data))
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]Value, prefix string, data map[string]interface{}) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		v := data[k]
		if k != opaqueKey {
			if nested, ok := asMap(v); ok {
				flattenInto(out, key, nested)
				continue
			}
		}
		out[key] = ValueOf(v)
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[string]string:
		out := make(map[string]interface{}, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}
