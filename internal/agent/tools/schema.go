package tools

import (
	"errors"
	"fmt"
	"math"
)

// ValidateArguments checks parsed arguments against a tool's input schema
// (the object-schema subset the builtin tools declare: required, properties
// with scalar types, additionalProperties). It runs before the tool body;
// a tool handler never sees arguments that failed validation.
func ValidateArguments(schema map[string]any, arguments map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	required, err := parseRequiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := arguments[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	properties, hasProperties := asStringAnyMap(schema["properties"])
	additionalAllowed, err := parseAdditionalProperties(schema["additionalProperties"])
	if err != nil {
		return err
	}

	for key, value := range arguments {
		propertySchema, hasProperty := properties[key]
		if !hasProperty {
			if hasProperties && !additionalAllowed {
				return fmt.Errorf("unknown argument %q", key)
			}
			continue
		}

		expectedType, hasType, err := parsePropertyType(propertySchema)
		if err != nil {
			return err
		}
		if !hasType {
			continue
		}
		if !matchesArgumentType(expectedType, value) {
			return fmt.Errorf("argument %q must be %q", key, expectedType)
		}
	}

	return nil
}

func parseRequiredFields(raw any) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		out := make([]string, len(value))
		copy(out, value)
		return out, nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			field, ok := item.(string)
			if !ok {
				return nil, errors.New(`input schema "required" entries must be strings`)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, errors.New(`input schema "required" must be an array`)
	}
}

func parseAdditionalProperties(raw any) (bool, error) {
	switch value := raw.(type) {
	case nil:
		return true, nil
	case bool:
		return value, nil
	default:
		return false, errors.New(`input schema "additionalProperties" must be a bool`)
	}
}

func parsePropertyType(propertySchema any) (string, bool, error) {
	propertyMap, ok := asStringAnyMap(propertySchema)
	if !ok {
		return "", false, errors.New(`input schema "properties" entries must be objects`)
	}
	rawType, ok := propertyMap["type"]
	if !ok {
		return "", false, nil
	}
	typeName, ok := rawType.(string)
	if !ok {
		return "", false, errors.New(`input schema property "type" must be a string`)
	}
	return typeName, true, nil
}

func matchesArgumentType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		return isJSONNumber(value)
	case "integer":
		f, ok := asFloat(value)
		return ok && f == math.Trunc(f)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := asStringAnyMap(value)
		return ok
	case "null":
		return value == nil
	default:
		// Unknown type names do not fail closed; the schema author opted out.
		return true
	}
}

func isJSONNumber(value any) bool {
	_, ok := asFloat(value)
	return ok
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func asStringAnyMap(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}
