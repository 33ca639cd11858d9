package server

import (
	"fmt"

	"github.com/mj1618/user-routine/internal/routine"
)

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		// JSON clients may send numbers where a string is expected
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

func mapParam(params map[string]interface{}, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be an object, got %T", key, v)
	}
	return m, nil
}

// actionsParam accepts either a newline separated string or an array of
// strings. A missing value yields nil, which the runner rejects.
func actionsParam(params map[string]interface{}, key string) ([]routine.Action, error) {
	switch v := params[key].(type) {
	case nil:
		return nil, nil
	case string:
		return routine.Lines(v), nil
	case []interface{}:
		raws := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: unsupported action type %T", key, i, item)
			}
			raws = append(raws, s)
		}
		return routine.Steps(raws...), nil
	case []string:
		return routine.Steps(v...), nil
	default:
		return nil, fmt.Errorf("%s must be a string or an array of strings, got %T", key, v)
	}
}
