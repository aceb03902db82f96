package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
)

// Fixture is a YAML document listing nodes to seed a store with.
type Fixture struct {
	Nodes []*node.Node `yaml:"nodes"`
}

// ParseFixture decodes a fixture and checks that ids are present and unique.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Nodes))
	for i, n := range f.Nodes {
		if n == nil || n.ID == "" {
			return nil, fmt.Errorf("fixture nodes[%d]: id is required", i)
		}
		if n.Role == "" {
			return nil, fmt.Errorf("fixture node %s: role is required", n.ID)
		}
		if _, dup := seen[n.ID]; dup {
			return nil, fmt.Errorf("fixture: duplicate id %q", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return &f, nil
}

// LoadFixture reads the fixture at path and saves every node into s.
func LoadFixture(ctx context.Context, s node.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f, err := ParseFixture(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for _, n := range f.Nodes {
		if err := s.Save(ctx, n); err != nil {
			return 0, err
		}
	}
	return len(f.Nodes), nil
}
