package baton

import (
	"fmt"
	"reflect"
	"time"
)

// DebugPrint prints timestamped debug output when debug is enabled.
func DebugPrint(debug bool, args ...interface{}) {
	if !debug {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprint(args...)
	fmt.Printf("\033[97m[\033[90m%s\033[97m]\033[90m %s\033[0m\n", timestamp, message)
}

// FunctionToJSON converts an AgentFunction into the OpenAI tool JSON form.
func FunctionToJSON(f AgentFunction) map[string]interface{} {
	properties, required := functionSchema(f)

	return map[string]interface{}{
		"type": "function",
		"function": map[string]interface{}{
			"name":        f.Name(),
			"description": f.Description(),
			"parameters": map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// MergeFields copies source entries into target. When both sides hold a map
// under the same key the maps are merged recursively instead of replaced.
func MergeFields(target, source map[string]interface{}) {
	for key, value := range source {
		if targetValue, exists := target[key]; exists {
			if mapValue, ok := value.(map[string]interface{}); ok {
				if targetMap, ok := targetValue.(map[string]interface{}); ok {
					MergeFields(targetMap, mapValue)
					continue
				}
			}
		}
		target[key] = value
	}
}

// functionSchema builds the JSON-schema properties and required list for a
// function's declared parameters. Struct-typed parameters are expanded into
// nested object schemas.
func functionSchema(f AgentFunction) (map[string]interface{}, []string) {
	properties := make(map[string]interface{})
	required := make([]string, 0)

	for _, p := range f.Parameters() {
		var prop map[string]interface{}
		if p.Type != nil && p.Type.Kind() == reflect.Struct {
			structProperties := make(map[string]interface{})
			for j := 0; j < p.Type.NumField(); j++ {
				field := p.Type.Field(j)
				structProperties[field.Name] = map[string]interface{}{
					"type": getJSONType(field.Type),
				}
			}
			prop = map[string]interface{}{
				"type":       "object",
				"properties": structProperties,
			}
		} else {
			prop = map[string]interface{}{
				"type": getJSONType(p.Type),
			}
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}

		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return properties, required
}

// getJSONType maps Go types to JSON schema type names.
func getJSONType(t reflect.Type) string {
	if t == nil {
		return "string"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Interface:
		return "object"
	default:
		return "string"
	}
}
