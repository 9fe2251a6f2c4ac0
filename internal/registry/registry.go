// Package registry loads the field schema that maps provider output onto
// Darwin Core terms. Institutions override the built-in enumeration with a
// YAML file listing their own field set.
package registry

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/model"
	"github.com/devvyn/aafc-herbarium-dwc-extraction-2025-sub001/internal/resilience"
)

type registryFile struct {
	Fields []model.FieldMapping `yaml:"fields"`
}

// Load reads a field registry from path. An empty path returns the built-in
// Darwin Core enumeration. Entries without a key are skipped with a warning
// rather than failing the load.
func Load(path string) (*model.FieldRegistry, error) {
	if path == "" {
		return model.NewFieldRegistry(model.DefaultFields()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}

	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", path)
	}
	if len(rf.Fields) == 0 {
		return nil, eris.Errorf("registry: %s defines no fields", path)
	}

	fields := make([]model.FieldMapping, 0, len(rf.Fields))
	seen := map[string]bool{}
	for _, f := range rf.Fields {
		if f.Key == "" {
			zap.L().Warn("registry: skipping field without key", zap.String("path", path))
			continue
		}
		if seen[f.Key] {
			zap.L().Warn("registry: skipping duplicate field", zap.String("key", f.Key))
			continue
		}
		seen[f.Key] = true
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, eris.Errorf("registry: %s has no usable fields", path)
	}

	return model.NewFieldRegistry(fields), nil
}

// RequireKeys verifies that every key is part of the registry. Audit rules
// and precedence lists are configured by key, so a typo there should fail
// startup instead of silently never matching.
func RequireKeys(reg *model.FieldRegistry, keys []string) error {
	for _, k := range keys {
		if reg.ByKey(k) == nil {
			return resilience.NewConfigurationError(eris.Errorf("registry: unknown field %q", k))
		}
	}
	return nil
}
