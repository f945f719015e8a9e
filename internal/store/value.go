package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/foliohq/folio/internal/model"
)

// encodeValue renders a customization value to its stored text form,
// validating it against the declared type.
func encodeValue(value any, valueType string) (string, error) {
	switch valueType {
	case model.TypeString, model.TypeColor:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s expects a string", ErrInvalidValue, valueType)
		}
		return s, nil

	case model.TypeNumber:
		switch n := value.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case json.Number:
			return n.String(), nil
		default:
			return "", fmt.Errorf("%w: number expects a numeric value", ErrInvalidValue)
		}

	case model.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return "", fmt.Errorf("%w: boolean expects true or false", ErrInvalidValue)
		}
		return strconv.FormatBool(b), nil

	case model.TypeJSON:
		raw, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("%w: json value not serializable", ErrInvalidValue)
		}
		return string(raw), nil

	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidValue, valueType)
	}
}

// coerceValue converts a stored text value back to its native type. A json
// value that no longer parses falls back to the raw string rather than
// erroring.
func coerceValue(raw, valueType string) any {
	switch valueType {
	case model.TypeNumber:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n
		}
		return raw
	case model.TypeBoolean:
		return raw == "true" || raw == "1"
	case model.TypeJSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
		return raw
	default:
		return raw
	}
}
