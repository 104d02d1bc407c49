package chunk

// Sanitize returns a copy of meta holding only primitive values: strings,
// integers, floats, and booleans. Nested maps, slices, nils, and anything
// else is dropped so the index layer never sees an unsupported type.
// Idempotent: Sanitize(Sanitize(m)) == Sanitize(m).
func Sanitize(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
			out[k] = v
		}
	}
	return out
}
