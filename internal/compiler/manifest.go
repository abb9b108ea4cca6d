package compiler

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/nodegraph/internal/boundary"
	"github.com/roach88/nodegraph/internal/graph"
	"github.com/roach88/nodegraph/internal/ir"
	"github.com/roach88/nodegraph/internal/node"
)

// Manifest is the packed, content-addressed description of a compiled
// subgraph. Its canonical JSON is both the cache-key preimage and the stored
// payload, so two boundaries with equal manifests share one artifact.
type Manifest struct {
	Identifier string       `json:"identifier"`
	Members    []Member     `json:"members"`
	Wires      []WireSpec   `json:"wires"`
	Inputs     []InputPort  `json:"inputs"`
	Outputs    []OutputPort `json:"outputs"`
}

// Member is one boundary node, listed in internal execution order. Hash is
// the descriptor's content hash, so members with equal behavior compare equal
// across manifests.
type Member struct {
	Ref        string          `json:"ref"`
	Hash       string          `json:"hash"`
	Descriptor node.Descriptor `json:"descriptor"`
}

// WireSpec is a port connection between two members.
type WireSpec struct {
	From     string `json:"from"`
	FromPort string `json:"from_port"`
	To       string `json:"to"`
	ToPort   string `json:"to_port"`
}

// InputPort is a value entering the boundary. Port is the compiled name
// ("<node>.<port>" of the receiving member); Source records the producing
// node outside the boundary so callers can bind it.
type InputPort struct {
	Port       string `json:"port"`
	Source     string `json:"source"`
	SourcePort string `json:"source_port"`
	Node       string `json:"node"`
	NodePort   string `json:"node_port"`
}

// OutputPort is a member output consumed outside the boundary. Port is the
// compiled name "<node>.<port>".
type OutputPort struct {
	Port     string `json:"port"`
	Node     string `json:"node"`
	NodePort string `json:"node_port"`
}

// PortName builds a compiled port name.
func PortName(ref graph.NodeRef, port string) string {
	return string(ref) + "." + port
}

// Resolver returns the Node registered under ref.
type Resolver func(ref graph.NodeRef) (node.Node, bool)

// BuildManifest analyzes a condensed boundary unit against the wires in snap.
//
// Every wire with exactly one end inside the boundary becomes a port: wires
// into the boundary are inputs, wires out of it are outputs (deduplicated by
// producing port). Wire ports must exist on the member's descriptor.
func BuildManifest(unit boundary.Unit, snap *graph.Snapshot, resolve Resolver) (*Manifest, error) {
	if !unit.IsBoundary() {
		return nil, fmt.Errorf("build manifest: unit %q is not a boundary", unit.Members[0])
	}
	inside := make(map[graph.NodeRef]bool, len(unit.Members))
	for _, ref := range unit.Members {
		inside[ref] = true
	}

	m := &Manifest{
		Identifier: unit.Boundary,
		Members:    make([]Member, 0, len(unit.Members)),
		Wires:      []WireSpec{},
		Inputs:     []InputPort{},
		Outputs:    []OutputPort{},
	}
	descs := make(map[graph.NodeRef]node.Descriptor, len(unit.Members))
	for _, ref := range unit.Members {
		n, ok := resolve(ref)
		if !ok {
			e := graph.NewUnknownNodeError(ref)
			e.Message = "no node registered for boundary member"
			e.Boundary = unit.Boundary
			return nil, e
		}
		d := n.Describe()
		h, err := ir.HashCanonical(ir.DomainDescriptor, d.IR())
		if err != nil {
			return nil, fmt.Errorf("build manifest %s: member %s: %w", unit.Boundary, ref, err)
		}
		descs[ref] = d
		m.Members = append(m.Members, Member{Ref: string(ref), Hash: h, Descriptor: d})
	}

	seenOut := make(map[string]bool)
	for _, w := range snap.Wires() {
		from, to := inside[w.From], inside[w.To]
		if to {
			if !descs[w.To].HasInput(w.ToPort) {
				return nil, portError(unit.Boundary, w, fmt.Sprintf("%s has no input port %q", w.To, w.ToPort))
			}
		}
		if from {
			if !descs[w.From].HasOutput(w.FromPort) {
				return nil, portError(unit.Boundary, w, fmt.Sprintf("%s has no output port %q", w.From, w.FromPort))
			}
		}
		switch {
		case from && to:
			m.Wires = append(m.Wires, WireSpec{
				From: string(w.From), FromPort: w.FromPort,
				To: string(w.To), ToPort: w.ToPort,
			})
		case to:
			m.Inputs = append(m.Inputs, InputPort{
				Port:       PortName(w.To, w.ToPort),
				Source:     string(w.From),
				SourcePort: w.FromPort,
				Node:       string(w.To),
				NodePort:   w.ToPort,
			})
		case from:
			name := PortName(w.From, w.FromPort)
			if seenOut[name] {
				continue
			}
			seenOut[name] = true
			m.Outputs = append(m.Outputs, OutputPort{Port: name, Node: string(w.From), NodePort: w.FromPort})
		}
	}
	return m, nil
}

func portError(id string, w graph.Wire, msg string) *graph.Error {
	return &graph.Error{
		Code:     graph.ErrCodeInvalidEdge,
		Message:  fmt.Sprintf("wire %s: %s", w, msg),
		Node:     w.To,
		Boundary: id,
	}
}

// Canonical returns the RFC 8785 encoding of the manifest.
func (m *Manifest) Canonical() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	v, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return ir.MarshalCanonical(v)
}

// Key returns the cache key for canonical manifest bytes.
func Key(canonical []byte) string {
	return ir.HashWithDomain(ir.DomainSubgraph, canonical)
}
