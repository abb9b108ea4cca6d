// Package node defines the capability interface the scheduler consumes.
//
// The scheduler never knows concrete node kinds. A node describes its ports
// and configuration, and executes given bound input values.
package node

import (
	"context"
	"slices"

	"github.com/roach88/nodegraph/internal/ir"
)

// Descriptor describes a node's kind, named ports and configuration.
// The compiler hashes descriptors into compiled-subgraph cache keys, so
// anything that changes a node's behavior belongs in Config.
type Descriptor struct {
	Kind    string      `json:"kind"`
	Inputs  []string    `json:"inputs"`
	Outputs []string    `json:"outputs"`
	Config  ir.IRObject `json:"config"`
}

// HasInput reports whether port is a declared input.
func (d Descriptor) HasInput(port string) bool {
	return slices.Contains(d.Inputs, port)
}

// HasOutput reports whether port is a declared output.
func (d Descriptor) HasOutput(port string) bool {
	return slices.Contains(d.Outputs, port)
}

// IR converts the descriptor to an IRObject for canonical hashing.
func (d Descriptor) IR() ir.IRObject {
	config := d.Config
	if config == nil {
		config = ir.IRObject{}
	}
	return ir.IRObject{
		"kind":    ir.IRString(d.Kind),
		"inputs":  stringsToIR(d.Inputs),
		"outputs": stringsToIR(d.Outputs),
		"config":  config,
	}
}

func stringsToIR(ss []string) ir.IRArray {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr
}

// Node is a unit of computation with named input and output ports.
//
// Execute receives values keyed by input port name and returns values keyed
// by output port name. Unwired inputs are absent from the map. Execute may be
// called concurrently with other nodes' Execute, but never concurrently with
// itself within one plan run.
type Node interface {
	Describe() Descriptor
	Execute(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error)
}

// Func adapts a function and a descriptor into a Node.
type Func struct {
	Desc Descriptor
	Fn   func(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error)
}

// Describe implements Node.
func (f *Func) Describe() Descriptor {
	return f.Desc
}

// Execute implements Node.
func (f *Func) Execute(ctx context.Context, inputs ir.IRObject) (ir.IRObject, error) {
	return f.Fn(ctx, inputs)
}
