// Package presets holds named configurations that replace the defaults.
package presets

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spacemeshos/go-delivery/config"
)

var presets = map[string]config.Config{}

func register(name string, conf config.Config) {
	if _, exist := presets[name]; exist {
		panic(fmt.Sprintf("preset with name %s already exists", name))
	}
	presets[name] = conf
}

// Options returns the names of the registered presets.
func Options() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Get returns the preset with name.
func Get(name string) (config.Config, error) {
	conf, exist := presets[name]
	if !exist {
		return config.Config{}, fmt.Errorf("preset %s is not registered, options: %v", name, Options())
	}
	return conf, nil
}
