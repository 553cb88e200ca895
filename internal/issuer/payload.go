package issuer

// Request bodies are assembled as nested maps with nil standing in for
// absent optional values, then passed through stripNulls before encoding.
// The API contract wants absent keys, not JSON null, so the elision happens
// on the value tree rather than by post-processing serialized text.

func stripNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
			out[k] = val
		case map[string]any:
			out[k] = stripNulls(val)
		default:
			out[k] = v
		}
	}
	return out
}

// optStr maps "" to nil so stripNulls drops the key.
func optStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// optID maps 0 to nil so stripNulls drops the key.
func optID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// optAttrs maps an empty attribute set to nil so stripNulls drops the key.
func optAttrs(attrs map[string]string) any {
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
