package normalize

// copyMap deep-copies a decoded document, canonicalizing string slices and
// string maps to their []any / map[string]any forms.
func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch node := v.(type) {
	case map[string]any:
		return copyMap(node)
	case map[string]string:
		out := make(map[string]any, len(node))
		for k, s := range node {
			out[k] = s
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = copyValue(child)
		}
		return out
	case []string:
		out := make([]any, len(node))
		for i, s := range node {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = copyMap(child)
		}
		return out
	default:
		return v
	}
}
