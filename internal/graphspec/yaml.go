package graphspec

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nodegraph/internal/ir"
)

type yamlGraph struct {
	Nodes      []yamlNode     `yaml:"nodes"`
	Deps       []DepSpec      `yaml:"deps,omitempty"`
	Wires      []WireSpec     `yaml:"wires,omitempty"`
	Boundaries []BoundarySpec `yaml:"boundaries,omitempty"`
}

type yamlNode struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config,omitempty"`
}

// LoadYAML reads a YAML graph file. Unknown fields are rejected so typos
// like "wire:" for "wires:" fail loudly. Validation is left to the caller;
// see Load.
func LoadYAML(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, File: path, Message: fmt.Sprintf("reading graph file: %v", err)}
	}
	return ParseYAML(data, path)
}

// ParseYAML decodes a YAML graph. source names the input in errors.
func ParseYAML(data []byte, source string) (*Graph, error) {
	var raw yamlGraph
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, File: source, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}

	g := &Graph{
		Source:     source,
		Deps:       raw.Deps,
		Wires:      raw.Wires,
		Boundaries: raw.Boundaries,
	}
	for i, n := range raw.Nodes {
		cfg, err := ir.ObjectFromGo(n.Config)
		if err != nil {
			return nil, &LoadError{
				Code:    ErrCodeInvalidValue,
				Field:   fmt.Sprintf("nodes[%d].config", i),
				Message: err.Error(),
				File:    source,
			}
		}
		g.Nodes = append(g.Nodes, NodeSpec{Name: n.Name, Kind: n.Kind, Config: cfg})
	}
	return g, nil
}
