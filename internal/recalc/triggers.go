package recalc

import (
	"fmt"
	"sort"
)

// Category partitions the ids awaiting recomputation. Categories are drained
// in declaration order.
type Category int

const (
	Restored Category = iota
	Elements
	Products
	Schemas
	SchemaFlags
	numCategories
)

// Categories lists every category in drain order.
var Categories = [...]Category{Restored, Elements, Products, Schemas, SchemaFlags}

func (c Category) String() string {
	switch c {
	case Restored:
		return "restored_elements"
	case Elements:
		return "elements"
	case Products:
		return "products"
	case Schemas:
		return "schemas"
	case SchemaFlags:
		return "schemas_flags"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// descending reports whether the category is ordered deepest path first.
func (c Category) descending() bool {
	return c == Restored || c == Elements
}

// TriggerSet accumulates, per category, the ids one logical operation has
// made stale. Registration is idempotent. Not safe for concurrent use; an
// operation runs sequentially.
type TriggerSet struct {
	sets [numCategories]map[string]struct{}
}

// NewTriggerSet returns an empty set.
func NewTriggerSet() *TriggerSet {
	t := &TriggerSet{}
	for i := range t.sets {
		t.sets[i] = make(map[string]struct{})
	}
	return t
}

// Register adds id to category c.
func (t *TriggerSet) Register(c Category, id string) {
	t.sets[c][id] = struct{}{}
}

// Has reports whether id is registered in c.
func (t *TriggerSet) Has(c Category, id string) bool {
	_, ok := t.sets[c][id]
	return ok
}

// Len returns the number of ids registered in c.
func (t *TriggerSet) Len(c Category) int { return len(t.sets[c]) }

// Empty reports whether nothing is registered in any category.
func (t *TriggerSet) Empty() bool {
	for _, s := range t.sets {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

// IDs returns the ids of c in drain order: descending for restored elements
// and elements, so that path-structured ids come deepest first; ascending
// otherwise.
func (t *TriggerSet) IDs(c Category) []string {
	ids := make([]string, 0, len(t.sets[c]))
	for id := range t.sets[c] {
		ids = append(ids, id)
	}
	if c.descending() {
		sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	} else {
		sort.Strings(ids)
	}
	return ids
}

// Take returns the ids of c in drain order and clears the category.
func (t *TriggerSet) Take(c Category) []string {
	ids := t.IDs(c)
	t.sets[c] = make(map[string]struct{})
	return ids
}

// Snapshot returns the ordered ids of every non-empty category.
func (t *TriggerSet) Snapshot() map[string][]string {
	out := make(map[string][]string)
	for _, c := range Categories {
		if t.Len(c) > 0 {
			out[c.String()] = t.IDs(c)
		}
	}
	return out
}
