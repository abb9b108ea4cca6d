// Package graphspec loads declarative node graphs from CUE or YAML and
// applies them to a scheduler.
//
// A graph file declares nodes (by builtin kind and configuration), plain
// ordering dependencies, port-level wires and compilation boundaries.
//
// CUE form, either a single .cue file or a directory of files sharing one
// package:
//
//	nodes: {
//		src: {kind: "const", config: value: 2}
//		triple: {kind: "scale", config: factor: 3}
//	}
//	wires: [{from: "src.value", to: "triple.value"}]
//	deps: [{node: "triple", needs: "src"}]
//	boundaries: {hot: ["triple"]}
//
// YAML form (.yaml or .yml), with nodes and boundaries as lists so their
// declaration order survives decoding:
//
//	nodes:
//	  - {name: src, kind: const, config: {value: 2}}
//	  - {name: triple, kind: scale, config: {factor: 3}}
//	wires:
//	  - {from: src.value, to: triple.value}
//	boundaries:
//	  - {id: hot, members: [triple]}
//
// Declaration order matters: nodes are registered in the order they appear,
// which fixes the scheduler's first-seen order and so its execution order.
package graphspec
