package model

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadData reads and validates an occupancy dataset from a JSON file.
func LoadData(filename string) (*OccData, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ data from %s", filename)
	}

	d := &OccData{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE data from %s", filename)
	}

	if err := d.Check(); err != nil {
		return nil, errors.Wrapf(err, "Data from %s is not valid", filename)
	}

	return d, nil
}

// LoadRunConfig reads a run configuration from a YAML file and validates it
// against the dataset.
func LoadRunConfig(filename string, d *OccData) (*RunConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ run config from %s", filename)
	}

	c := &RunConfig{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE run config from %s", filename)
	}

	if err := c.Check(d); err != nil {
		return nil, errors.Wrapf(err, "Run config from %s is not valid", filename)
	}

	return c, nil
}
