package adapters

import (
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	contractrelay "github.com/devflow/devflow/internal/contracts/v1/relay"
	"github.com/devflow/devflow/internal/platform/errors"
)

// YAMLSettingsStore reads relay settings from a YAML file (devflow.yaml by default).
// Unknown keys are rejected so typos surface at startup instead of being ignored.
type YAMLSettingsStore struct{}

func NewYAMLSettingsStore() YAMLSettingsStore { return YAMLSettingsStore{} }

func (YAMLSettingsStore) Read(path string) (contractrelay.SettingsV1, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return contractrelay.SettingsV1{}, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return contractrelay.SettingsV1{}, false, nil
		}
		return contractrelay.SettingsV1{}, false, errors.NewIO("relay settings: failed to open "+path, err)
	}
	defer f.Close()

	var s contractrelay.SettingsV1
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if err == io.EOF {
			return contractrelay.SettingsV1{}, true, nil
		}
		return contractrelay.SettingsV1{}, false, errors.New(errors.KindConfig, "relay settings: failed to parse "+path, err)
	}
	return s, true, nil
}
