// pkg/registry/schema.go
package registry

// StateRegistry is the static state -> route file table.
type StateRegistry struct {
	Version string      `yaml:"version"`
	States  []StateFile `yaml:"states"`
}

// StateFile names the CSV that lists one state's routes.
type StateFile struct {
	State string `yaml:"state"`
	File  string `yaml:"file"`
}
