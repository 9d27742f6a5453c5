package ana

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EventFile is the YAML layout of an event-record fixture: an optional run
// summary followed by the flat per-event records. This is test and CLI
// scaffolding, not an owned wire format.
type EventFile struct {
	Summary *RunSummary    `yaml:"summary"`
	Events  []*EventRecord `yaml:"events"`
}

// LoadEvents reads an event fixture file.
func LoadEvents(path string) (*EventFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event file: %w", err)
	}
	var file EventFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing event file: %w", err)
	}
	return &file, nil
}
