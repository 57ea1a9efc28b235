package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nathro/autotransform/internal/config"
)

// CustomComponentsFileName is the file in the component directory declaring
// user-contributed components.
const CustomComponentsFileName = "custom_components.json"

// customComponentsFile maps component kind to name to base bundle. A custom
// component is an alias for a built-in bundle with preset attributes;
// attributes in a referencing bundle override the preset ones.
type customComponentsFile struct {
	Inputs       map[string]json.RawMessage `json:"inputs,omitempty"`
	Filters      map[string]json.RawMessage `json:"filters,omitempty"`
	Batchers     map[string]json.RawMessage `json:"batchers,omitempty"`
	Transformers map[string]json.RawMessage `json:"transformers,omitempty"`
	Validators   map[string]json.RawMessage `json:"validators,omitempty"`
	Commands     map[string]json.RawMessage `json:"commands,omitempty"`
	Repos        map[string]json.RawMessage `json:"repos,omitempty"`
}

// LoadCustomComponents reads the custom component declarations from the
// given component directory and registers each under the custom/ namespace.
// A missing file is not an error; an unreadable or invalid one is a
// configuration error.
func LoadCustomComponents(dir string) error {
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, CustomComponentsFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("schema: reading custom components %s: %w (%w)", path, err, config.ErrConfig)
	}
	var file customComponentsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("schema: parsing custom components %s: %w (%w)", path, err, config.ErrConfig)
	}

	registerCustom(inputs, file.Inputs)
	registerCustom(filters, file.Filters)
	registerCustom(batchers, file.Batchers)
	registerCustom(transformers, file.Transformers)
	registerCustom(validators, file.Validators)
	registerCustom(commands, file.Commands)
	registerCustom(repos, file.Repos)
	return nil
}

func registerCustom[T Component](r *registry[T], aliases map[string]json.RawMessage) {
	for name, base := range aliases {
		base := base
		r.register(CustomNamePrefix+name, func(instance json.RawMessage) (T, error) {
			merged, err := mergeBundles(base, instance)
			if err != nil {
				var zero T
				return zero, err
			}
			return r.decode(merged)
		})
	}
}

// mergeBundles overlays the attributes of the instance bundle (minus its
// name) on top of the base bundle.
func mergeBundles(base, instance json.RawMessage) (json.RawMessage, error) {
	var baseMap, instMap map[string]any
	if err := json.Unmarshal(base, &baseMap); err != nil {
		return nil, fmt.Errorf("schema: invalid custom component base bundle: %w (%w)", err, config.ErrConfig)
	}
	if err := json.Unmarshal(instance, &instMap); err != nil {
		return nil, fmt.Errorf("schema: invalid component bundle: %w (%w)", err, config.ErrConfig)
	}
	for k, v := range instMap {
		if k == "name" {
			continue
		}
		baseMap[k] = v
	}
	return json.Marshal(baseMap)
}
