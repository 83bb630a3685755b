package worker

import "encoding/json"

// dangerousKeys are stripped from every object level of a payload before
// delivery, per spec.md §4.4 step 3 — these are prototype-pollution vector
// names from the original JavaScript-era implementation, kept here because
// the Job payload is opaque JSON that may have been authored against that
// assumption.
var dangerousKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// sanitizePayload decodes raw as arbitrary JSON, strips dangerousKeys from
// every nested object, and re-encodes it. An empty or absent payload passes
// through as an empty JSON object.
func sanitizePayload(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return []byte("{}"), nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	cleaned := sanitizeValue(decoded)
	return json.Marshal(cleaned)
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if dangerousKeys[k] {
				continue
			}
			out[k] = sanitizeValue(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = sanitizeValue(child)
		}
		return out
	default:
		return val
	}
}
