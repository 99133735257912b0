package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nooga/jsintrinsics/pkg/vm"
)

// Group tracks a set of running agents by ID.
type Group struct {
	mu     sync.RWMutex
	agents map[uuid.UUID]*Agent
	order  []uuid.UUID
}

func NewGroup() *Group {
	return &Group{agents: make(map[uuid.UUID]*Agent)}
}

// Spawn creates and starts an agent in the group.
func (g *Group) Spawn(ctx context.Context, config Config) (*Agent, error) {
	a, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.agents[a.id] = a
	g.order = append(g.order, a.id)
	g.mu.Unlock()
	return a, nil
}

// Get returns the agent with the given ID.
func (g *Group) Get(id uuid.UUID) (*Agent, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.agents[id]
	return a, ok
}

// Len returns the number of agents in the group.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.agents)
}

// Post sends msg to the agent with the given ID.
func (g *Group) Post(ctx context.Context, id uuid.UUID, sender *vm.VM, msg vm.Value) error {
	a, ok := g.Get(id)
	if !ok {
		return fmt.Errorf("no agent %s", id)
	}
	return a.PostMessage(ctx, sender, msg)
}

// Broadcast sends msg to every agent, in spawn order.
func (g *Group) Broadcast(ctx context.Context, sender *vm.VM, msg vm.Value) error {
	g.mu.RLock()
	agents := make([]*Agent, 0, len(g.order))
	for _, id := range g.order {
		agents = append(agents, g.agents[id])
	}
	g.mu.RUnlock()

	var errs []error
	for _, a := range agents {
		if err := a.PostMessage(ctx, sender, msg); err != nil {
			errs = append(errs, fmt.Errorf("agent %s: %w", a.id, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown stops every agent and empties the group.
func (g *Group) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	agents := g.agents
	order := g.order
	g.agents = make(map[uuid.UUID]*Agent)
	g.order = nil
	g.mu.Unlock()

	var errs []error
	for _, id := range order {
		if err := agents[id].Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
