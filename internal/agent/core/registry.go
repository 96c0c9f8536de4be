package core

import (
	"fmt"
	"sort"
)

// Registry maps agent identifiers to their work units. It is built once and
// read-only afterwards, so concurrent runs may share it without locking.
type Registry struct {
	agents map[AgentID]Agent
}

// NewRegistry copies the supplied definitions into a read-only registry. The
// Terminal sentinel is not a registrable id.
func NewRegistry(defs map[AgentID]Agent) (*Registry, error) {
	agents := make(map[AgentID]Agent, len(defs))
	for id, agent := range defs {
		if id == Terminal {
			return nil, fmt.Errorf("agent id %q is reserved", Terminal)
		}
		if id == "" {
			return nil, fmt.Errorf("agent id must not be empty")
		}
		if agent == nil {
			return nil, fmt.Errorf("agent %q is nil", id)
		}
		agents[id] = agent
	}
	return &Registry{agents: agents}, nil
}

// Lookup returns the work unit registered under id.
func (r *Registry) Lookup(id AgentID) (Agent, bool) {
	agent, ok := r.agents[id]
	return agent, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id AgentID) bool {
	_, ok := r.agents[id]
	return ok
}

// IDs returns all registered ids in a stable order.
func (r *Registry) IDs() []AgentID {
	ids := make([]AgentID, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
