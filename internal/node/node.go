package node

import "fmt"

// Role discriminates the kinds of nodes held in the product tree.
type Role string

const (
	RoleProject    Role = "project"
	RoleProduct    Role = "product"
	RoleContainer  Role = "container"
	RoleElectric   Role = "electric_component"
	RoleProxy      Role = "proxy_component"
	RoleSchema     Role = "rbd_schema"
	RoleBlock      Role = "rbd_block"
	RoleSubRbd     Role = "sub_rbd"
	RoleGroupStart Role = "rbd_group_start"
	RoleGroupEnd   Role = "rbd_group_end"
	RoleInput      Role = "rbd_input"
	RoleOutput     Role = "rbd_output"
)

// IsRBD reports whether the role is a node of an RBD graph (not the schema itself).
func (r Role) IsRBD() bool {
	switch r {
	case RoleBlock, RoleSubRbd, RoleGroupStart, RoleGroupEnd, RoleInput, RoleOutput:
		return true
	}
	return false
}

// IsComponent reports whether the role carries component reliability data
// that aggregates into its container or product.
func (r Role) IsComponent() bool {
	switch r {
	case RoleContainer, RoleElectric, RoleProxy:
		return true
	}
	return false
}

// Variables holds the reliability parameters of an element.
// A nil field means "absent" (not yet calculable).
type Variables struct {
	FailureRate        *float64 `json:"failure_rate,omitempty" yaml:"failure_rate,omitempty"`
	MTBF               *float64 `json:"mtbf,omitempty" yaml:"mtbf,omitempty"`
	Reliability        *float64 `json:"reliability,omitempty" yaml:"reliability,omitempty"`
	FailureProbability *float64 `json:"failure_probability,omitempty" yaml:"failure_probability,omitempty"`
	SetReliability     *float64 `json:"set_reliability,omitempty" yaml:"set_reliability,omitempty"`
	SetReliabilityTime *float64 `json:"set_reliability_time,omitempty" yaml:"set_reliability_time,omitempty"`
}

// Empty reports whether no parameter is present.
func (v *Variables) Empty() bool {
	return v == nil || (v.FailureRate == nil && v.MTBF == nil && v.Reliability == nil &&
		v.FailureProbability == nil && v.SetReliability == nil && v.SetReliabilityTime == nil)
}

// Flags is the structural-health summary persisted on a schema.
type Flags struct {
	ContainsDuplicates             bool `json:"contains_duplicates" yaml:"contains_duplicates"`
	EmptyBlocks                    bool `json:"empty_blocks" yaml:"empty_blocks"`
	BlocksWithElementsWoParameters bool `json:"blocks_w_elements_wo_parameters" yaml:"blocks_w_elements_wo_parameters"`
	SubsWithNotCalculatedSchemas   bool `json:"subs_w_not_calculated_schemas" yaml:"subs_w_not_calculated_schemas"`
}

// Node is a single element of the product tree, identified by its semantic id.
// Which link fields are meaningful depends on Role:
//
//	Block, SubRbd, Input, Output: Input, Output, Ref
//	GroupStart:                   Input, Outputs, End
//	GroupEnd:                     Inputs, Output, Start
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Role     Role     `json:"role" yaml:"role"`
	Parent   string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`

	Input   *string  `json:"input,omitempty" yaml:"input,omitempty"`
	Output  *string  `json:"output,omitempty" yaml:"output,omitempty"`
	Inputs  []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Start   *string  `json:"start,omitempty" yaml:"start,omitempty"`
	End     *string  `json:"end,omitempty" yaml:"end,omitempty"`
	Ref     *string  `json:"ref,omitempty" yaml:"ref,omitempty"` // component (Block) or schema (SubRbd)

	Vars             *Variables `json:"vars,omitempty" yaml:"vars,omitempty"`
	ExpectedLifeTime *float64   `json:"expected_life_time,omitempty" yaml:"expected_life_time,omitempty"`
	Flags            *Flags     `json:"flags,omitempty" yaml:"flags,omitempty"`

	// RbdRefs maps a schema id to the blocks (or sub-RBDs) of that schema
	// which reference this node.
	RbdRefs map[string][]string `json:"rbd_refs,omitempty" yaml:"rbd_refs,omitempty"`
}

// FailureRate returns the node's computed failure rate, if any.
func (n *Node) FailureRate() (float64, bool) {
	if n.Vars == nil || n.Vars.FailureRate == nil {
		return 0, false
	}
	return *n.Vars.FailureRate, true
}

// SingleOutput returns the output link of a single-output RBD element.
func (n *Node) SingleOutput() (*string, error) {
	switch n.Role {
	case RoleBlock, RoleSubRbd, RoleInput, RoleOutput, RoleGroupEnd:
		return n.Output, nil
	case RoleGroupStart:
		return nil, fmt.Errorf("%s: %w", n.ID, ErrMultipleOutputs)
	}
	return nil, fmt.Errorf("%s (%s): %w", n.ID, n.Role, ErrNotAnElement)
}

// SingleInput returns the input link of a single-input RBD element.
func (n *Node) SingleInput() (*string, error) {
	switch n.Role {
	case RoleBlock, RoleSubRbd, RoleInput, RoleOutput, RoleGroupStart:
		return n.Input, nil
	case RoleGroupEnd:
		return nil, fmt.Errorf("%s: %w", n.ID, ErrMultipleInputs)
	}
	return nil, fmt.Errorf("%s (%s): %w", n.ID, n.Role, ErrNotAnElement)
}

// OutputLinks returns every output link regardless of the role's link shape.
func (n *Node) OutputLinks() ([]string, error) {
	if n.Role == RoleGroupStart {
		return n.Outputs, nil
	}
	out, err := n.SingleOutput()
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return []string{*out}, nil
}

// InputLinks returns every input link regardless of the role's link shape.
func (n *Node) InputLinks() ([]string, error) {
	if n.Role == RoleGroupEnd {
		return n.Inputs, nil
	}
	in, err := n.SingleInput()
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, nil
	}
	return []string{*in}, nil
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Children = append([]string(nil), n.Children...)
	c.Inputs = append([]string(nil), n.Inputs...)
	c.Outputs = append([]string(nil), n.Outputs...)
	c.Input = cloneString(n.Input)
	c.Output = cloneString(n.Output)
	c.Start = cloneString(n.Start)
	c.End = cloneString(n.End)
	c.Ref = cloneString(n.Ref)
	c.ExpectedLifeTime = cloneFloat(n.ExpectedLifeTime)
	if n.Vars != nil {
		v := n.Vars.Clone()
		c.Vars = &v
	}
	if n.Flags != nil {
		f := *n.Flags
		c.Flags = &f
	}
	if n.RbdRefs != nil {
		c.RbdRefs = make(map[string][]string, len(n.RbdRefs))
		for k, v := range n.RbdRefs {
			c.RbdRefs[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// Clone returns a copy of v with no shared pointers.
func (v Variables) Clone() Variables {
	return Variables{
		FailureRate:        cloneFloat(v.FailureRate),
		MTBF:               cloneFloat(v.MTBF),
		Reliability:        cloneFloat(v.Reliability),
		FailureProbability: cloneFloat(v.FailureProbability),
		SetReliability:     cloneFloat(v.SetReliability),
		SetReliabilityTime: cloneFloat(v.SetReliabilityTime),
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	return Ptr(*s)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	return Ptr(*f)
}
