package resource

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/frc-reefscape/reefbot/utils"
)

// ConfigValidator is implemented by every native component config.
type ConfigValidator interface {
	// Validate returns the names of the resources this one implicitly depends on.
	Validate(path string) ([]string, error)
}

// NoNativeConfig is used by models that take no attributes.
type NoNativeConfig struct{}

// Validate always succeeds.
func (NoNativeConfig) Validate(path string) ([]string, error) {
	return nil, nil
}

// A Config describes the configuration of a resource.
type Config struct {
	Name      string   `json:"name"`
	API       API      `json:"api"`
	Model     Model    `json:"model"`
	DependsOn []string `json:"depends_on,omitempty"`

	Attributes          utils.AttributeMap `json:"attributes,omitempty"`
	ConvertedAttributes ConfigValidator    `json:"-"`
	ImplicitDependsOn   []string           `json:"-"`
}

// NativeConfig returns the native config from the given config via its converted attributes.
func NativeConfig[T any](conf Config) (T, error) {
	typed, ok := conf.ConvertedAttributes.(T)
	if !ok {
		var zero T
		return zero, utils.NewUnexpectedTypeError(zero, conf.ConvertedAttributes)
	}
	return typed, nil
}

// ResourceName returns the Name for the component.
func (conf *Config) ResourceName() Name {
	return NewName(conf.API, conf.Name)
}

// String returns a short description of the config.
func (conf *Config) String() string {
	return fmt.Sprintf("%s (model %s)", conf.ResourceName(), conf.Model)
}

// Dependencies returns the deduplicated union of user-defined and implicit dependencies.
func (conf *Config) Dependencies() []string {
	result := make([]string, 0, len(conf.DependsOn)+len(conf.ImplicitDependsOn))
	seen := make(map[string]struct{})
	for _, deps := range [][]string{conf.DependsOn, conf.ImplicitDependsOn} {
		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				result = append(result, dep)
			}
		}
	}
	return result
}

// Validate ensures all parts of the config are valid, converts its attributes into the native
// config registered for its model, and returns the implicit dependencies.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Name == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if err := conf.API.Validate(); err != nil {
		return nil, goutils.NewConfigValidationError(path, err)
	}
	if conf.Model == "" {
		return nil, goutils.NewConfigValidationFieldRequiredError(path, "model")
	}

	reg, ok := LookupRegistration(conf.API, conf.Model)
	if !ok {
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("no registered model %q for api %q", conf.Model, conf.API))
	}
	if conf.ConvertedAttributes == nil && reg.AttributeMapConverter != nil {
		converted, err := reg.AttributeMapConverter(conf.Attributes)
		if err != nil {
			return nil, goutils.NewConfigValidationError(path, errors.Wrap(err, "error converting attributes"))
		}
		conf.ConvertedAttributes = converted
	}
	if conf.ConvertedAttributes == nil {
		return nil, nil
	}

	deps, err := conf.ConvertedAttributes.Validate(fmt.Sprintf("%s.attributes", path))
	if err != nil {
		return nil, err
	}
	conf.ImplicitDependsOn = deps
	return deps, nil
}

// TransformAttributeMap uses an attribute map to transform attributes to the prescribed format.
func TransformAttributeMap[T any](attributes utils.AttributeMap) (T, error) {
	var out T
	toT := reflect.TypeOf(out)
	if toT == nil {
		return out, nil
	}
	var forResult interface{} = &out
	if toT.Kind() == reflect.Ptr {
		var ok bool
		out, ok = reflect.New(toT.Elem()).Interface().(T)
		if !ok {
			return out, errors.Errorf("failed to allocate default config type %T", out)
		}
		forResult = out
	}
	if attributes == nil {
		attributes = utils.AttributeMap{}
	}
	if err := utils.TransformAttributeMapToStruct(forResult, attributes); err != nil {
		return out, err
	}
	return out, nil
}
