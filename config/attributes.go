package config

import (
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a free-form set of driver attributes.
type AttributeMap map[string]interface{}

// Has reports whether name is set.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// TransformAttributeMap decodes attributes into the typed config T, using json tags. T may be a
// struct or a pointer to one. Unknown attributes are an error.
func TransformAttributeMap[T any](attributes AttributeMap) (T, error) {
	var out T

	var forResult interface{}
	toT := reflect.TypeOf(out)
	if toT == nil {
		return out, errors.New("cannot transform attributes into an interface type")
	}
	if toT.Kind() == reflect.Ptr {
		// needs to be allocated then
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	} else {
		forResult = &out
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           forResult,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return out, err
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return out, errors.Errorf("unknown attributes %v", md.Unused)
	}
	return out, nil
}
