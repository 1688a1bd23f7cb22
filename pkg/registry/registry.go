// pkg/registry/registry.go
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default returns the ten states served out of the box, in selector order.
func Default() *StateRegistry {
	return &StateRegistry{
		Version: "1",
		States: []StateFile{
			{State: "Andhra Pradesh", File: "df_a1.csv"},
			{State: "Telungana", File: "df_t2.csv"},
			{State: "Kerala", File: "df_k3.csv"},
			{State: "South Bengal", File: "df_s4.csv"},
			{State: "West Bengal", File: "df_w5.csv"},
			{State: "Bihar", File: "df_b6.csv"},
			{State: "Haryana", File: "df_h7.csv"},
			{State: "Rajastan", File: "df_r8.csv"},
			{State: "Punjab", File: "df_p9.csv"},
			{State: "Assam", File: "df_as10.csv"},
		},
	}
}

// LoadRegistry reads a YAML manifest replacing the default table.
func LoadRegistry(path string) (*StateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var reg StateRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse state registry %s: %w", path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("state registry %s: %w", path, err)
	}
	return &reg, nil
}

// Validate requires at least one entry, non-empty names and unique states.
func (r *StateRegistry) Validate() error {
	if len(r.States) == 0 {
		return fmt.Errorf("no states defined")
	}
	seen := make(map[string]bool, len(r.States))
	for i, s := range r.States {
		if strings.TrimSpace(s.State) == "" || strings.TrimSpace(s.File) == "" {
			return fmt.Errorf("entry %d: state and file are required", i)
		}
		if seen[s.State] {
			return fmt.Errorf("duplicate state %q", s.State)
		}
		seen[s.State] = true
	}
	return nil
}

// Names returns the state names in registry order.
func (r *StateRegistry) Names() []string {
	names := make([]string, len(r.States))
	for i, s := range r.States {
		names[i] = s.State
	}
	return names
}

// Save writes the registry as YAML, creating the parent directory.
func (r *StateRegistry) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal state registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Find returns the index of state, or -1.
func (r *StateRegistry) Find(state string) int {
	for i, s := range r.States {
		if s.State == state {
			return i
		}
	}
	return -1
}
