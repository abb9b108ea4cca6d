package compiler

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
)

// CompiledSubgraph is the executable artifact for one boundary.
//
// It is immutable after construction and safe to execute from several
// goroutines at once, provided the member nodes are.
type CompiledSubgraph struct {
	// Key is the content hash of Payload.
	Key string

	// Identifier is the boundary id.
	Identifier string

	// Members in internal execution order.
	Members []graph.NodeRef

	Inputs  []InputPort
	Outputs []OutputPort

	// Payload is the canonical manifest.
	Payload []byte

	nodes      []node.Node
	wiresInto  map[graph.NodeRef][]WireSpec
	inputsInto map[graph.NodeRef][]InputPort
}

// link binds a manifest to live nodes and produces the entry point.
func link(m *Manifest, key string, payload []byte, resolve Resolver) (*CompiledSubgraph, error) {
	cs := &CompiledSubgraph{
		Key:        key,
		Identifier: m.Identifier,
		Members:    make([]graph.NodeRef, len(m.Members)),
		Inputs:     m.Inputs,
		Outputs:    m.Outputs,
		Payload:    payload,
		nodes:      make([]node.Node, len(m.Members)),
		wiresInto:  make(map[graph.NodeRef][]WireSpec),
		inputsInto: make(map[graph.NodeRef][]InputPort),
	}
	for i, member := range m.Members {
		ref := graph.NodeRef(member.Ref)
		n, ok := resolve(ref)
		if !ok {
			e := graph.NewUnknownNodeError(ref)
			e.Boundary = m.Identifier
			return nil, e
		}
		cs.Members[i] = ref
		cs.nodes[i] = n
	}
	for _, w := range m.Wires {
		to := graph.NodeRef(w.To)
		cs.wiresInto[to] = append(cs.wiresInto[to], w)
	}
	for _, in := range m.Inputs {
		to := graph.NodeRef(in.Node)
		cs.inputsInto[to] = append(cs.inputsInto[to], in)
	}
	return cs, nil
}

// LinkedTo reports whether c runs exactly the members of m as resolve
// returns them now. Nodes are matched by pointer identity, so a node
// registered again under the same ref needs a new link.
func (c *CompiledSubgraph) LinkedTo(m *Manifest, resolve Resolver) bool {
	if len(c.Members) != len(m.Members) {
		return false
	}
	for i, member := range m.Members {
		ref := graph.NodeRef(member.Ref)
		if c.Members[i] != ref {
			return false
		}
		n, ok := resolve(ref)
		if !ok || !sameNode(c.nodes[i], n) {
			return false
		}
	}
	return true
}

// sameNode compares pointer-shaped nodes by identity. Other dynamic types
// may not be comparable and never count as the same.
func sameNode(a, b node.Node) bool {
	ta := reflect.TypeOf(a)
	if ta == nil || ta != reflect.TypeOf(b) || ta.Kind() != reflect.Pointer {
		return false
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

// Entry returns the designated entry node: the first member in internal order.
func (c *CompiledSubgraph) Entry() graph.NodeRef {
	return c.Members[0]
}

// Contains reports whether ref is a member.
func (c *CompiledSubgraph) Contains(ref graph.NodeRef) bool {
	for _, m := range c.Members {
		if m == ref {
			return true
		}
	}
	return false
}

// InputPorts returns the compiled input port names.
func (c *CompiledSubgraph) InputPorts() []string {
	out := make([]string, len(c.Inputs))
	for i, p := range c.Inputs {
		out[i] = p.Port
	}
	return out
}

// OutputPorts returns the compiled output port names.
func (c *CompiledSubgraph) OutputPorts() []string {
	out := make([]string, len(c.Outputs))
	for i, p := range c.Outputs {
		out[i] = p.Port
	}
	return out
}

// Execute runs the members in internal order.
//
// inputs is keyed by compiled input port name; missing inputs are left
// unbound for the receiving node. The result is keyed by compiled output
// port name. A member failure, or cancellation between members, is returned
// as ErrCodeSubgraphExecution naming the member. The artifact itself is not
// affected by a failed run.
func (c *CompiledSubgraph) Execute(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
	values := make(map[string]ir.IRValue)
	for i, ref := range c.Members {
		if err := ctx.Err(); err != nil {
			return nil, c.executionError(ref, err)
		}
		in := ir.IRObject{}
		for _, w := range c.wiresInto[ref] {
			if v, ok := values[PortName(graph.NodeRef(w.From), w.FromPort)]; ok {
				in[w.ToPort] = v
			}
		}
		for _, p := range c.inputsInto[ref] {
			if v, ok := inputs[p.Port]; ok {
				in[p.NodePort] = v
			}
		}

		out, err := c.nodes[i].Execute(ctx, in)
		if err != nil {
			return nil, c.executionError(ref, err)
		}
		for port, v := range out {
			values[PortName(ref, port)] = v
		}
	}

	result := make(ir.IRObject, len(c.Outputs))
	for _, p := range c.Outputs {
		if v, ok := values[p.Port]; ok {
			result[p.Port] = v
		}
	}
	return result, nil
}

func (c *CompiledSubgraph) executionError(ref graph.NodeRef, err error) *graph.Error {
	return &graph.Error{
		Code:     graph.ErrCodeSubgraphExecution,
		Message:  fmt.Sprintf("compiled subgraph %s failed", c.Key[:12]),
		Node:     ref,
		Boundary: c.Identifier,
		Err:      err,
	}
}
