// Package contract loads the declarative rule contract (spec.md §6) from
// YAML, the format the core's single entry point accepts.
package contract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleSpec is one `rules:` entry (spec.md §6 contract file shape).
type RuleSpec struct {
	Name     string         `yaml:"name"`
	ID       string         `yaml:"id,omitempty"`
	Params   map[string]any `yaml:"params,omitempty"`
	Severity string         `yaml:"severity,omitempty"`
}

// Contract is the parsed contract file (spec.md §6).
type Contract struct {
	Name       string     `yaml:"name,omitempty"`
	Datasource string     `yaml:"datasource,omitempty"`
	// Dataset is the legacy synonym for Datasource (spec.md §6: "Legacy
	// key dataset accepted as synonym for datasource").
	Dataset string     `yaml:"dataset,omitempty"`
	Rules   []RuleSpec `yaml:"rules"`
}

// ResolvedDatasource returns Datasource, falling back to the legacy Dataset
// key when Datasource is empty.
func (c *Contract) ResolvedDatasource() string {
	if c.Datasource != "" {
		return c.Datasource
	}
	return c.Dataset
}

// Load reads and parses a contract file from path. Any I/O or YAML error is
// a config_error per spec.md §7 ("malformed contract... Fatal at phase 1
// with failure_mode=config_error"); the orchestrator is responsible for
// attaching that failure mode, this function just returns a plain error.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses contract YAML from an in-memory byte slice (used by Load and
// directly by tests / embedded-contract callers).
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("contract: parse yaml: %w", err)
	}
	if c.ResolvedDatasource() == "" {
		return nil, fmt.Errorf("contract: missing datasource (or legacy dataset) key")
	}
	if len(c.Rules) == 0 {
		return nil, fmt.Errorf("contract: no rules declared")
	}
	for i, r := range c.Rules {
		if r.Name == "" {
			return nil, fmt.Errorf("contract: rules[%d] missing required 'name' key", i)
		}
	}
	return &c, nil
}
