package workflow

import "strings"

// resolveInputs substitutes task input values of the exact form "$name"
// with context[name], recursing into nested maps. Other values, and
// references to names absent from the context, pass through unchanged.
func resolveInputs(input, context map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = resolveValue(v, context)
	}
	return out
}

func resolveValue(v any, context map[string]any) any {
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, "$") {
			if resolved, ok := context[val[1:]]; ok {
				return resolved
			}
		}
		return val
	case map[string]any:
		return resolveInputs(val, context)
	default:
		return v
	}
}

// cloneContext makes a shallow copy so parallel branches mutate
// independently.
func cloneContext(context map[string]any) map[string]any {
	out := make(map[string]any, len(context))
	for k, v := range context {
		out[k] = v
	}
	return out
}
