package utils

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// AttributeMap is a loosely typed set of component attributes as read from a config file.
type AttributeMap map[string]interface{}

// Has returns whether the key is present.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// GetString returns the attribute as a string, or "" if it is absent or not convertible.
func (am AttributeMap) GetString(name string) string {
	if x, has := am[name]; has {
		if s, err := cast.ToStringE(x); err == nil {
			return s
		}
	}
	return ""
}

// GetInt returns the attribute as an int, or def.
func (am AttributeMap) GetInt(name string, def int) int {
	if x, has := am[name]; has {
		if i, err := cast.ToIntE(x); err == nil {
			return i
		}
	}
	return def
}

// GetFloat64 returns the attribute as a float64, or def.
func (am AttributeMap) GetFloat64(name string, def float64) float64 {
	if x, has := am[name]; has {
		if f, err := cast.ToFloat64E(x); err == nil {
			return f
		}
	}
	return def
}

// GetBool returns the attribute as a bool, or def.
func (am AttributeMap) GetBool(name string, def bool) bool {
	if x, has := am[name]; has {
		if b, err := cast.ToBoolE(x); err == nil {
			return b
		}
	}
	return def
}

// TransformAttributeMapToStruct decodes the attribute map into target, which must be a pointer to
// a struct with `json` tags. Durations may be given as strings like "1.5s" and any field
// implementing encoding.TextUnmarshaler is decoded from its text form.
func TransformAttributeMapToStruct(target interface{}, attributes AttributeMap) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           target,
		WeaklyTypedInput: true,
		Squash:           true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return errors.Wrap(err, "error creating decoder")
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return errors.Wrap(err, "error decoding attributes")
	}
	return nil
}
