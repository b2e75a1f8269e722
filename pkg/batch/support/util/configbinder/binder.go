// Package configbinder decodes loosely typed property maps into typed structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds properties to target, which must be a pointer to a struct.
// Fields are matched by their `yaml` tag and string values are weakly converted,
// so {"chunkSize": "10"} binds to an int field.
//
// Parameters:
//
//	properties: The map of properties to bind.
//	target: The target struct pointer.
//
// Returns:
//
//	An error if a value cannot be converted to its field type.
func BindProperties(properties map[string]interface{}, target interface{}) error {
	if len(properties) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(properties); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}

// BindStringProperties is BindProperties for string-valued maps such as CLI flags.
func BindStringProperties(props map[string]string, target interface{}) error {
	m := make(map[string]interface{}, len(props))
	for k, v := range props {
		m[k] = v
	}
	return BindProperties(m, target)
}
