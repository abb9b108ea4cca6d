package graphspec

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"

	"github.com/roach88/nodegraph/internal/ir"
)

// LoadCUEDir loads every .cue file in dir as one CUE instance. Validation is
// left to the caller; see Load.
func LoadCUEDir(dir string) (*Graph, error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, File: dir, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, File: dir, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, buildError(dir, err)
	}
	return fromCUE(value, dir)
}

// LoadCUEFile compiles a single .cue file.
func LoadCUEFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, File: path, Message: fmt.Sprintf("reading graph file: %v", err)}
	}
	value := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, buildError(path, err)
	}
	return fromCUE(value, path)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// buildError keeps the position of the first CUE error.
func buildError(source string, err error) *LoadError {
	le := &LoadError{Code: ErrCodeBuildFailed, File: source, Message: fmt.Sprintf("building CUE value: %v", err)}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		if pos := cueerrors.Positions(errs[0]); len(pos) > 0 {
			le.Pos = pos[0]
		}
	}
	return le
}

func fromCUE(v cue.Value, source string) (*Graph, error) {
	g := &Graph{Source: source}

	if nodes := v.LookupPath(cue.ParsePath("nodes")); nodes.Exists() {
		iter, err := nodes.Fields()
		if err != nil {
			return nil, cueError(source, "nodes", nodes, err)
		}
		for iter.Next() {
			spec, err := cueNode(iter.Label(), iter.Value(), source)
			if err != nil {
				return nil, err
			}
			g.Nodes = append(g.Nodes, spec)
		}
	}

	if deps := v.LookupPath(cue.ParsePath("deps")); deps.Exists() {
		iter, err := deps.List()
		if err != nil {
			return nil, cueError(source, "deps", deps, err)
		}
		for i := 0; iter.Next(); i++ {
			field := fmt.Sprintf("deps[%d]", i)
			n, err := cueString(iter.Value(), "node", field, source)
			if err != nil {
				return nil, err
			}
			needs, err := cueString(iter.Value(), "needs", field, source)
			if err != nil {
				return nil, err
			}
			g.Deps = append(g.Deps, DepSpec{Node: n, Needs: needs})
		}
	}

	if wires := v.LookupPath(cue.ParsePath("wires")); wires.Exists() {
		iter, err := wires.List()
		if err != nil {
			return nil, cueError(source, "wires", wires, err)
		}
		for i := 0; iter.Next(); i++ {
			field := fmt.Sprintf("wires[%d]", i)
			from, err := cueString(iter.Value(), "from", field, source)
			if err != nil {
				return nil, err
			}
			to, err := cueString(iter.Value(), "to", field, source)
			if err != nil {
				return nil, err
			}
			g.Wires = append(g.Wires, WireSpec{From: from, To: to})
		}
	}

	if boundaries := v.LookupPath(cue.ParsePath("boundaries")); boundaries.Exists() {
		iter, err := boundaries.Fields()
		if err != nil {
			return nil, cueError(source, "boundaries", boundaries, err)
		}
		for iter.Next() {
			id := iter.Label()
			members, err := iter.Value().List()
			if err != nil {
				return nil, cueError(source, "boundaries."+id, iter.Value(), err)
			}
			spec := BoundarySpec{ID: id, Members: []string{}}
			for members.Next() {
				m, err := members.Value().String()
				if err != nil {
					return nil, cueError(source, "boundaries."+id, members.Value(), err)
				}
				spec.Members = append(spec.Members, m)
			}
			g.Boundaries = append(g.Boundaries, spec)
		}
	}
	return g, nil
}

func cueNode(name string, v cue.Value, source string) (NodeSpec, error) {
	field := "nodes." + name
	kind, err := cueString(v, "kind", field, source)
	if err != nil {
		return NodeSpec{}, err
	}
	spec := NodeSpec{Name: name, Kind: kind, Config: ir.IRObject{}}

	cfg := v.LookupPath(cue.ParsePath("config"))
	if !cfg.Exists() {
		return spec, nil
	}
	val, err := cueToIR(cfg, field+".config", source)
	if err != nil {
		return NodeSpec{}, err
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return NodeSpec{}, &LoadError{Code: ErrCodeInvalidValue, Field: field + ".config", Message: "config must be a struct", File: source, Pos: cfg.Pos()}
	}
	spec.Config = obj
	return spec, nil
}

func cueString(v cue.Value, name, field, source string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &LoadError{Code: ErrCodeInvalidRef, Field: field, Message: name + " is required", File: source, Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", cueError(source, field+"."+name, f, err)
	}
	return s, nil
}

// cueToIR converts a concrete CUE value. Floats are rejected.
func cueToIR(v cue.Value, field, source string) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, cueError(source, field, v, err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, cueError(source, field, v, err)
		}
		return ir.IRInt(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, cueError(source, field, v, err)
		}
		return ir.IRString(s), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &LoadError{Code: ErrCodeInvalidValue, Field: field, Message: "floats are not allowed, use int", File: source, Pos: v.Pos()}
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, cueError(source, field, v, err)
		}
		arr := ir.IRArray{}
		for i := 0; iter.Next(); i++ {
			elem, err := cueToIR(iter.Value(), fmt.Sprintf("%s[%d]", field, i), source)
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, cueError(source, field, v, err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := cueToIR(iter.Value(), field+"."+iter.Label(), source)
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	default:
		return nil, &LoadError{Code: ErrCodeInvalidValue, Field: field, Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()), File: source, Pos: v.Pos()}
	}
}

func cueError(source, field string, v cue.Value, err error) *LoadError {
	return &LoadError{Code: ErrCodeGeneric, Field: field, Message: err.Error(), File: source, Pos: v.Pos()}
}
