package rbd

import (
	"fmt"
	"strings"
)

// Kind discriminates the three shapes of an algebraic model.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindSeries
	KindParallel
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSeries:
		return "series"
	case KindParallel:
		return "parallel"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Model is the algebraic form of a chain: a leaf with a constant failure
// rate, or a series/parallel composition of sub-models. Models are built
// fresh for each evaluation and own their children.
type Model struct {
	Kind     Kind
	Rate     float64 // leaf only
	Children []*Model
}

// Leaf returns a constant failure rate model.
func Leaf(rate float64) *Model { return &Model{Kind: KindLeaf, Rate: rate} }

// Series returns a model that survives only while every child survives.
func Series(children ...*Model) *Model { return &Model{Kind: KindSeries, Children: children} }

// Parallel returns a model that survives while any child survives.
func Parallel(children ...*Model) *Model { return &Model{Kind: KindParallel, Children: children} }

// Decays reports whether any leaf has a positive failure rate, i.e. whether
// R(t) is not identically one.
func (m *Model) Decays() bool {
	if m == nil {
		return false
	}
	if m.Kind == KindLeaf {
		return m.Rate > 0
	}
	for _, c := range m.Children {
		if c.Decays() {
			return true
		}
	}
	return false
}

// LeafCount returns the number of leaves in the model.
func (m *Model) LeafCount() int {
	if m == nil {
		return 0
	}
	if m.Kind == KindLeaf {
		return 1
	}
	n := 0
	for _, c := range m.Children {
		n += c.LeafCount()
	}
	return n
}

// String renders the model as S(...)/P(...)/λ for logs and test failures.
func (m *Model) String() string {
	if m == nil {
		return "<nil>"
	}
	var sb strings.Builder
	m.format(&sb)
	return sb.String()
}

func (m *Model) format(sb *strings.Builder) {
	switch m.Kind {
	case KindLeaf:
		fmt.Fprintf(sb, "%g", m.Rate)
		return
	case KindSeries:
		sb.WriteString("S(")
	case KindParallel:
		sb.WriteString("P(")
	}
	for i, c := range m.Children {
		if i > 0 {
			sb.WriteString(", ")
		}
		c.format(sb)
	}
	sb.WriteString(")")
}
