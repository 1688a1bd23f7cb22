package loadroutecatalog

import "time"

// Catalog maps each state to its route names in file order. Duplicates
// are kept. A Catalog is never mutated after construction.
type Catalog struct {
	states   []string
	routes   map[string][]string
	failures map[string]string
	loadedAt time.Time
}

// NewCatalog copies its inputs. Every state in states gets an entry, empty
// when routes has none for it.
func NewCatalog(states []string, routes map[string][]string, failures map[string]string) *Catalog {
	c := &Catalog{
		states:   append([]string(nil), states...),
		routes:   make(map[string][]string, len(states)),
		failures: make(map[string]string, len(failures)),
		loadedAt: time.Now().UTC(),
	}
	for _, s := range states {
		c.routes[s] = append([]string{}, routes[s]...)
	}
	for s, reason := range failures {
		c.failures[s] = reason
	}
	return c
}

// States returns the state names in registry order.
func (c *Catalog) States() []string {
	return append([]string(nil), c.states...)
}

// Routes returns a copy of the state's routes and whether the state exists.
func (c *Catalog) Routes(state string) ([]string, bool) {
	r, ok := c.routes[state]
	if !ok {
		return nil, false
	}
	return append([]string{}, r...), true
}

func (c *Catalog) HasRoute(state, route string) bool {
	for _, r := range c.routes[state] {
		if r == route {
			return true
		}
	}
	return false
}

// Failures maps states whose file could not be loaded to the reason.
func (c *Catalog) Failures() map[string]string {
	out := make(map[string]string, len(c.failures))
	for s, reason := range c.failures {
		out[s] = reason
	}
	return out
}

func (c *Catalog) LoadedAt() time.Time {
	return c.loadedAt
}

// All returns a deep copy of the state -> routes mapping.
func (c *Catalog) All() map[string][]string {
	out := make(map[string][]string, len(c.routes))
	for s, r := range c.routes {
		out[s] = append([]string{}, r...)
	}
	return out
}
