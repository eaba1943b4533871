package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/resource"
	"github.com/frc-reefscape/reefbot/utils"
)

// Read reads a config from the given file, fills in defaults and validates it.
func Read(path string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := FromReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg.ConfigFilePath = path
	return cfg, nil
}

// FromReader reads a JSON config, expands environment variables in every string value, fills in
// defaults and validates the result. Unset variables expand to the empty string.
func FromReader(r io.Reader) (*Config, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			raw = map[string]interface{}{}
		} else {
			return nil, errors.Wrap(err, "cannot parse config")
		}
	}
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, err
	}
	var unprocessed Config
	if err := utils.TransformAttributeMapToStruct(&unprocessed, expanded.(map[string]interface{})); err != nil {
		return nil, err
	}
	cfg := unprocessed.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} in string values only, so a variable can
// never change the structure of the document.
func expandEnv(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case string:
		expanded, err := envsubst.String(x)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot expand %q", x)
		}
		return expanded, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			expanded, err := expandEnv(val)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			expanded, err := expandEnv(val)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// Schema returns the JSON schema of the robot config.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}

// ModelSchemas returns the JSON schema of the attributes of every registered component model,
// keyed by "api/model".
func ModelSchemas() map[string]*jsonschema.Schema {
	schemas := map[string]*jsonschema.Schema{}
	for _, apiModel := range resource.RegisteredModels() {
		reg, ok := resource.LookupRegistration(apiModel.API, apiModel.Model)
		if !ok || reg.ConfigReflectType() == nil {
			continue
		}
		schemas[apiModel.API.String()+"/"+string(apiModel.Model)] = jsonschema.ReflectFromType(reg.ConfigReflectType())
	}
	return schemas
}
