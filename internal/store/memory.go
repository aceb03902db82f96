// Package store provides node.Store implementations: an in-memory map for
// tests and fixtures, and a BadgerDB-backed store for the server.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// Memory is a map-backed node.Store. Nodes are cloned on the way in and out.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]*node.Node
	saves int
}

// NewMemory returns a store holding the given nodes.
func NewMemory(nodes ...*node.Node) *Memory {
	m := &Memory{nodes: make(map[string]*node.Node, len(nodes))}
	for _, n := range nodes {
		m.nodes[n.ID] = n.Clone()
	}
	return m
}

func (m *Memory) Fetch(_ context.Context, id string) (*node.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, node.ErrNotFound)
	}
	return n.Clone(), nil
}

func (m *Memory) Save(_ context.Context, n *node.Node) error {
	if n.ID == "" {
		return fmt.Errorf("save: empty id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n.Clone()
	m.saves++
	return nil
}

// Delete removes id; unknown ids are ignored.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
	return nil
}

// Saves returns how many writes the store has accepted.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// IDs returns every stored id in ascending order.
func (m *Memory) IDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
