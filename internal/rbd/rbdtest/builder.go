// Package rbdtest builds product trees and RBD graphs for tests.
package rbdtest

import (
	"github.com/gyaneshwarpardhi/rbdcalc/internal/node"
	"github.com/gyaneshwarpardhi/rbdcalc/internal/store"
)

// Builder accumulates nodes and wires their links. Ids are used verbatim;
// parents must be added before their children.
type Builder struct {
	nodes map[string]*node.Node
	order []string
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{nodes: make(map[string]*node.Node)}
}

// Add creates a node under parent ("" for a root) and returns it for
// further tweaking.
func (b *Builder) Add(id string, role node.Role, parent string) *node.Node {
	n := &node.Node{ID: id, Role: role, Parent: parent}
	b.nodes[id] = n
	b.order = append(b.order, id)
	if p, ok := b.nodes[parent]; ok {
		p.Children = append(p.Children, id)
	}
	return n
}

// Node returns a previously added node.
func (b *Builder) Node(id string) *node.Node { return b.nodes[id] }

// Product adds a product with the given expected life time (nil for none).
func (b *Builder) Product(id string, lifeTime *float64) *node.Node {
	n := b.Add(id, node.RoleProduct, "")
	n.ExpectedLifeTime = lifeTime
	return n
}

// Component adds a component; rate nil leaves it without parameters.
func (b *Builder) Component(id string, role node.Role, parent string, rate *float64) *node.Node {
	n := b.Add(id, role, parent)
	if rate != nil {
		n.Vars = &node.Variables{FailureRate: node.Ptr(*rate)}
	}
	return n
}

// Schema adds a schema with its input node id+"/in" and output node id+"/out".
func (b *Builder) Schema(id, parent string) *node.Node {
	s := b.Add(id, node.RoleSchema, parent)
	b.Add(In(id), node.RoleInput, id)
	b.Add(Out(id), node.RoleOutput, id)
	return s
}

// In returns the input node id of a schema built by Schema.
func In(schema string) string { return schema + "/in" }

// Out returns the output node id of a schema built by Schema.
func Out(schema string) string { return schema + "/out" }

// Block adds a block in schema bound to ref ("" for an empty block) and
// records the back-reference on the referenced node when it exists.
func (b *Builder) Block(id, schema, ref string) *node.Node {
	return b.bound(id, node.RoleBlock, schema, ref)
}

// Sub adds a sub-RBD in schema referencing another schema.
func (b *Builder) Sub(id, schema, ref string) *node.Node {
	return b.bound(id, node.RoleSubRbd, schema, ref)
}

func (b *Builder) bound(id string, role node.Role, schema, ref string) *node.Node {
	n := b.Add(id, role, schema)
	if ref == "" {
		return n
	}
	n.Ref = node.Ptr(ref)
	if target, ok := b.nodes[ref]; ok {
		if target.RbdRefs == nil {
			target.RbdRefs = make(map[string][]string)
		}
		target.RbdRefs[schema] = append(target.RbdRefs[schema], id)
	}
	return n
}

// Group adds a paired group start/end in schema.
func (b *Builder) Group(start, end, schema string) {
	s := b.Add(start, node.RoleGroupStart, schema)
	e := b.Add(end, node.RoleGroupEnd, schema)
	s.End = node.Ptr(end)
	e.Start = node.Ptr(start)
}

// Link connects from's output to to's input, appending for group fan-out
// and fan-in.
func (b *Builder) Link(from, to string) {
	f, t := b.nodes[from], b.nodes[to]
	if f.Role == node.RoleGroupStart {
		f.Outputs = append(f.Outputs, to)
	} else {
		f.Output = node.Ptr(to)
	}
	if t.Role == node.RoleGroupEnd {
		t.Inputs = append(t.Inputs, from)
	} else {
		t.Input = node.Ptr(from)
	}
}

// Chain links ids in order.
func (b *Builder) Chain(ids ...string) {
	for i := 1; i < len(ids); i++ {
		b.Link(ids[i-1], ids[i])
	}
}

// Nodes returns every node in insertion order.
func (b *Builder) Nodes() []*node.Node {
	out := make([]*node.Node, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.nodes[id])
	}
	return out
}

// Store returns a memory store holding a copy of every node.
func (b *Builder) Store() *store.Memory {
	return store.NewMemory(b.Nodes()...)
}

// Rate is a convenience for optional failure rates.
func Rate(f float64) *float64 { return &f }
