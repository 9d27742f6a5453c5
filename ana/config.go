package ana

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AnalysisConfig groups the run-wide analysis parameters, loadable from a
// YAML file. Empty string fields mean "use the default".
type AnalysisConfig struct {
	Period      string `yaml:"period"`       // "2016", "2017", "2018"
	JetOrdering string `yaml:"jet_ordering"` // "pt", "csv", "deep-csv", "deep-flavour"
	Workers     int    `yaml:"workers"`      // parallel event workers (0 = GOMAXPROCS)
}

// ValidPeriods is the set of recognized data-taking periods.
var ValidPeriods = map[string]bool{"": true, "2016": true, "2017": true, "2018": true}

// ValidJetOrderings is the set of recognized jet-ordering policy names.
var ValidJetOrderings = map[string]bool{"": true, "pt": true, "csv": true, "deep-csv": true, "deep-flavour": true}

// LoadAnalysisConfig reads and parses a YAML analysis configuration file.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading analysis config: %w", err)
	}
	var cfg AnalysisConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing analysis config: %w", err)
	}
	return &cfg, nil
}

// Validate checks names and parameter ranges.
func (c *AnalysisConfig) Validate() error {
	if !ValidPeriods[c.Period] {
		return fmt.Errorf("unknown period %q", c.Period)
	}
	if !ValidJetOrderings[c.JetOrdering] {
		return fmt.Errorf("unknown jet ordering %q", c.JetOrdering)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

// Resolve converts the string fields into their typed values, applying
// defaults for empty fields ("2017", "deep-flavour").
func (c *AnalysisConfig) Resolve() (Period, JetOrdering, error) {
	if err := c.Validate(); err != nil {
		return 0, 0, err
	}
	period := Period2017
	if c.Period != "" {
		var err error
		period, err = ParsePeriod(c.Period)
		if err != nil {
			return 0, 0, err
		}
	}
	ordering := OrderByDeepFlavour
	if c.JetOrdering != "" {
		var err error
		ordering, err = ParseJetOrdering(c.JetOrdering)
		if err != nil {
			return 0, 0, err
		}
	}
	return period, ordering, nil
}
