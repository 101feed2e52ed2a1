// Package catalog loads the engine's policy, engagement, experiment and banner
// definitions from YAML.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pocketbudget/entitlement-engine/pkg/banner"
	"github.com/pocketbudget/entitlement-engine/pkg/engagement"
	"github.com/pocketbudget/entitlement-engine/pkg/experiment"
	"github.com/pocketbudget/entitlement-engine/pkg/policy"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a catalog fails validation.
var ErrInvalidConfig = errors.New("invalid catalog")

// Catalog is the full engine definition.
type Catalog struct {
	Policy      policy.Table          `yaml:"policy"`
	Engagement  engagement.Thresholds `yaml:"engagement"`
	Experiments []experiment.Test     `yaml:"experiments"`
	Banners     []banner.Banner       `yaml:"banners"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		Policy:      policy.DefaultTable(),
		Engagement:  engagement.DefaultThresholds(),
		Experiments: experiment.DefaultTests(),
		Banners:     banner.Defaults(),
	}
}

// Load reads a catalog from a YAML file.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
// Sections missing from the file keep their built-in values.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	expanded := expandEnvVars(string(data))

	c := Default()
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every section and the references between them.
func (c *Catalog) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: policy: %v", ErrInvalidConfig, err)
	}
	if err := c.Engagement.Validate(); err != nil {
		return fmt.Errorf("%w: engagement: %v", ErrInvalidConfig, err)
	}

	testIDs := make(map[string]bool)
	for _, t := range c.Experiments {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: experiments: %v", ErrInvalidConfig, err)
		}
		if testIDs[t.ID] {
			return fmt.Errorf("%w: duplicate experiment ID: %s", ErrInvalidConfig, t.ID)
		}
		testIDs[t.ID] = true
	}

	bannerIDs := make(map[string]bool)
	for _, b := range c.Banners {
		if b.ID == "" {
			return fmt.Errorf("%w: banner with empty ID found", ErrInvalidConfig)
		}
		if bannerIDs[b.ID] {
			return fmt.Errorf("%w: duplicate banner ID: %s", ErrInvalidConfig, b.ID)
		}
		bannerIDs[b.ID] = true

		if b.CopyTest != "" && !testIDs[b.CopyTest] {
			return fmt.Errorf("%w: banner %s references unknown experiment: %s", ErrInvalidConfig, b.ID, b.CopyTest)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		value := os.Getenv(parts[0])
		if value == "" && len(parts) == 2 {
			return parts[1]
		}
		return value
	})
}
