package device

// State holds the latest value of every property a device has reported.
//
// Keys are property names from the model table, or the decimal property ID
// when the model does not name it. Example:
//
//	{"relay0": 1, "power0": 23.5, "deviceTemperature": 41.2}
type State map[string]any

// Clone creates an independent copy of the state.
// Nested maps and slices are copied so callers cannot mutate device state.
func (s State) Clone() State {
	return deepCopyMap(s)
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return deepCopyMap(val)
	case State:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
