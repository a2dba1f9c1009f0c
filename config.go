package workerpool

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Swind/go-worker-pool/core"
)

// FileConfig is the YAML shape of a pool configuration.
//
//	name: ingest-pool
//	workers: 8
//	priority: high
//	grace_period: 2s
type FileConfig struct {
	Name     string `yaml:"name"`
	Workers  int    `yaml:"workers"`
	Priority string `yaml:"priority"`

	// GracePeriod is a Go duration string, e.g. "500ms" or "2s".
	GracePeriod string `yaml:"grace_period"`
}

// ParseConfig decodes a YAML pool configuration. Validation of the worker
// count happens in NewPool, not here.
func ParseConfig(data []byte) (Config, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, errors.Wrap(err, "parsing pool configuration")
	}

	cfg := Config{
		Name:    fc.Name,
		Workers: fc.Workers,
	}

	priority, err := core.ParsePriority(fc.Priority)
	if err != nil {
		return Config{}, errors.Wrap(err, "parsing pool configuration")
	}
	cfg.Priority = priority
	if fc.GracePeriod != "" {
		grace, err := time.ParseDuration(fc.GracePeriod)
		if err != nil {
			return Config{}, errors.Wrap(err, "parsing pool configuration grace_period")
		}
		cfg.GracePeriod = grace
	}
	return cfg, nil
}

// LoadConfig reads and decodes a YAML pool configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading pool configuration %s", path)
	}
	return ParseConfig(data)
}
