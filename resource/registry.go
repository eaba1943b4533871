package resource

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/utils"
)

type (
	// A Create creates a resource from a collection of dependencies and a given config.
	Create[ResourceT Resource] func(
		ctx context.Context,
		deps Dependencies,
		conf Config,
		logger logging.Logger,
	) (ResourceT, error)

	// An AttributeMapConverter converts an attribute map into a native config type for a resource.
	AttributeMapConverter[ConfigT any] func(attributes utils.AttributeMap) (ConfigT, error)

	// An APIModel is the tuple that identifies a model implementing an API.
	APIModel struct {
		API   API
		Model Model
	}
)

// A Registration stores construction info for a resource. A single constructor is mandatory.
type Registration[ResourceT Resource, ConfigT any] struct {
	Constructor Create[ResourceT]

	// AttributeMapConverter is used to convert raw attributes to the resource's native config.
	AttributeMapConverter AttributeMapConverter[ConfigT]

	configType reflect.Type
}

// ConfigReflectType returns the reflective resource config type.
func (r Registration[ResourceT, ConfigT]) ConfigReflectType() reflect.Type {
	return r.configType
}

var (
	registryMu sync.RWMutex
	registry   = map[APIModel]Registration[Resource, ConfigValidator]{}
)

// RegisterComponent registers a model for a component and its construction info.
func RegisterComponent[ResourceT Resource, ConfigT ConfigValidator](
	api API,
	model Model,
	reg Registration[ResourceT, ConfigT],
) {
	if !api.IsComponent() {
		panic(errors.Errorf("trying to register a non-component api: %q, model: %q", api, model))
	}
	Register(api, model, reg)
}

// Register registers a model for a resource and its construction info.
func Register[ResourceT Resource, ConfigT ConfigValidator](
	api API,
	model Model,
	reg Registration[ResourceT, ConfigT],
) {
	registryMu.Lock()
	defer registryMu.Unlock()

	apiModel := APIModel{api, model}
	if _, old := registry[apiModel]; old {
		panic(errors.Errorf("trying to register two resources with same api: %q, model: %q", api, model))
	}
	if reg.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for api: %q, model: %q", api, model))
	}
	var zero ConfigT
	if reg.AttributeMapConverter == nil {
		reg.AttributeMapConverter = TransformAttributeMap[ConfigT]
	}
	reg.configType = reflect.TypeOf(zero)
	registry[apiModel] = makeGenericResourceRegistration(reg)
}

// The registry stores one concrete registration type, so wrap the typed functions.
func makeGenericResourceRegistration[ResourceT Resource, ConfigT ConfigValidator](
	typed Registration[ResourceT, ConfigT],
) Registration[Resource, ConfigValidator] {
	return Registration[Resource, ConfigValidator]{
		configType: typed.configType,
		Constructor: func(
			ctx context.Context,
			deps Dependencies,
			conf Config,
			logger logging.Logger,
		) (Resource, error) {
			return typed.Constructor(ctx, deps, conf, logger)
		},
		AttributeMapConverter: func(attributes utils.AttributeMap) (ConfigValidator, error) {
			return typed.AttributeMapConverter(attributes)
		},
	}
}

// Deregister removes a previously registered resource.
func Deregister(api API, model Model) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, APIModel{api, model})
}

// LookupRegistration looks up a creator by the given api and model.
func LookupRegistration(api API, model Model) (Registration[Resource, ConfigValidator], bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	registration, ok := registry[APIModel{api, model}]
	return registration, ok
}

// RegisteredModels returns every registered api/model pair in a stable order.
func RegisteredModels() []APIModel {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]APIModel, 0, len(registry))
	for apiModel := range registry {
		out = append(out, apiModel)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].API != out[j].API {
			return out[i].API.String() < out[j].API.String()
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// Build validates the config and constructs the resource registered for its model.
func Build(ctx context.Context, deps Dependencies, conf Config, logger logging.Logger) (Resource, error) {
	if _, err := conf.Validate(conf.Name); err != nil {
		return nil, err
	}
	reg, ok := LookupRegistration(conf.API, conf.Model)
	if !ok {
		return nil, errors.Errorf("no registered model %q for api %q", conf.Model, conf.API)
	}
	res, err := reg.Constructor(ctx, deps, conf, logger.Sublogger(conf.Name))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot build %s", conf.ResourceName())
	}
	return res, nil
}
