package keymap

import (
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
)

var bindingType = reflect.TypeOf(key.Binding{})

// ApplyOverrides rebinds km's exported key.Binding fields, including those
// of embedded structs, from overrides keyed by snake_case field name:
// overrides["step_over"] sets km.StepOver. An empty key list disables the
// binding. It returns the override names that matched no field, sorted.
func ApplyOverrides(km interface{}, overrides Overrides) []string {
	if len(overrides) == 0 {
		return nil
	}

	v := reflect.ValueOf(km)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil
	}

	matched := make(map[string]bool, len(overrides))
	applyOverrides(v.Elem(), overrides, matched)

	var unknown []string
	for name := range overrides {
		if !matched[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func applyOverrides(v reflect.Value, overrides Overrides, matched map[string]bool) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field, sf := v.Field(i), t.Field(i)
		if !field.CanSet() {
			continue
		}
		if sf.Anonymous && field.Kind() == reflect.Struct {
			applyOverrides(field, overrides, matched)
			continue
		}
		if sf.Type != bindingType {
			continue
		}

		name := camelToSnake(sf.Name)
		keys, ok := overrides[name]
		if !ok {
			continue
		}
		matched[name] = true
		field.Set(reflect.ValueOf(rebind(field.Interface().(key.Binding), keys)))
	}
}

// rebind keeps b's help description and swaps its keys.
func rebind(b key.Binding, keys []string) key.Binding {
	desc := b.Help().Desc
	if len(keys) == 0 {
		return key.NewBinding(key.WithHelp("", desc), key.WithDisabled())
	}
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(strings.Join(keys, "/"), desc),
	)
}

// camelToSnake converts a CamelCase field name to its config key.
func camelToSnake(s string) string {
	var result strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				result.WriteRune('_')
			}
			result.WriteRune(unicode.ToLower(r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
