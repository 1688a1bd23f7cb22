// internal/workers/catalog/load-route-catalog/models.go
package loadroutecatalog

import "time"

type Input struct {
	State string `json:"state,omitempty"`
}

// Output lists every state, or the routes of one state when Input.State
// was set.
type Output struct {
	States   []string            `json:"states"`
	Routes   map[string][]string `json:"routes"`
	Failures map[string]string   `json:"failures,omitempty"`
	LoadedAt time.Time           `json:"loadedAt"`
}
