package templates

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlCatalog is the on-disk shape of a template catalog file.
type yamlCatalog struct {
	Templates []Template `yaml:"templates"`
}

// NewYAMLSource loads a template catalog from a YAML file. The file is read
// once; edits require a restart. Intended for development and test setups
// where a database is overkill.
func NewYAMLSource(path string) (*MemorySource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadSource, err)
	}

	var catalog yamlCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, errors.Join(ErrFailedToLoadSource, err)
	}
	if len(catalog.Templates) == 0 {
		return nil, fmt.Errorf("%w: no templates in %s", ErrFailedToLoadSource, path)
	}

	return NewMemorySource(catalog.Templates...)
}
