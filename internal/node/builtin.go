package node

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/nodegraph/internal/ir"
)

// Builtin kind names.
const (
	KindConst    = "const"
	KindSum      = "sum"
	KindConcat   = "concat"
	KindScale    = "scale"
	KindIdentity = "identity"
	KindFail     = "fail"
)

// PortValue is the port name single-valued builtins read and write.
const PortValue = "value"

// ErrNodeFailed is returned by the fail kind.
var ErrNodeFailed = errors.New("node failed")

// Builtins returns a registry preloaded with the builtin kinds.
//
//	const     config.value              -> value
//	sum       config.inputs (ints)      -> value
//	concat    config.inputs, config.sep -> value
//	scale     value * config.factor     -> value
//	identity  value                     -> value
//	fail      always errors with config.message
func Builtins() *Registry {
	r := NewRegistry()
	for kind, f := range map[string]Factory{
		KindConst:    newConst,
		KindSum:      newSum,
		KindConcat:   newConcat,
		KindScale:    newScale,
		KindIdentity: newIdentity,
		KindFail:     newFail,
	} {
		if err := r.Register(kind, f); err != nil {
			panic(err)
		}
	}
	return r
}

func newConst(config ir.IRObject) (Node, error) {
	v, ok := config["value"]
	if !ok {
		return nil, fmt.Errorf("config.value is required")
	}
	return &Func{
		Desc: Descriptor{Kind: KindConst, Inputs: []string{}, Outputs: []string{PortValue}, Config: config},
		Fn: func(context.Context, ir.IRObject) (ir.IRObject, error) {
			return ir.IRObject{PortValue: v}, nil
		},
	}, nil
}

func newSum(config ir.IRObject) (Node, error) {
	ports, err := inputPorts(config, []string{"a", "b"})
	if err != nil {
		return nil, err
	}
	return &Func{
		Desc: Descriptor{Kind: KindSum, Inputs: ports, Outputs: []string{PortValue}, Config: config},
		Fn: func(_ context.Context, in ir.IRObject) (ir.IRObject, error) {
			var total ir.IRInt
			for _, p := range ports {
				v, ok := in[p]
				if !ok {
					continue
				}
				n, ok := v.(ir.IRInt)
				if !ok {
					return nil, fmt.Errorf("input %q: expected int, got %s", p, ir.KindOf(v))
				}
				total += n
			}
			return ir.IRObject{PortValue: total}, nil
		},
	}, nil
}

func newConcat(config ir.IRObject) (Node, error) {
	ports, err := inputPorts(config, []string{"a", "b"})
	if err != nil {
		return nil, err
	}
	sep := ""
	if v, ok := config["sep"]; ok {
		s, ok := v.(ir.IRString)
		if !ok {
			return nil, fmt.Errorf("config.sep: expected string, got %s", ir.KindOf(v))
		}
		sep = string(s)
	}
	return &Func{
		Desc: Descriptor{Kind: KindConcat, Inputs: ports, Outputs: []string{PortValue}, Config: config},
		Fn: func(_ context.Context, in ir.IRObject) (ir.IRObject, error) {
			parts := make([]string, 0, len(ports))
			for _, p := range ports {
				v, ok := in[p]
				if !ok {
					continue
				}
				s, ok := v.(ir.IRString)
				if !ok {
					return nil, fmt.Errorf("input %q: expected string, got %s", p, ir.KindOf(v))
				}
				parts = append(parts, string(s))
			}
			return ir.IRObject{PortValue: ir.IRString(strings.Join(parts, sep))}, nil
		},
	}, nil
}

func newScale(config ir.IRObject) (Node, error) {
	v, ok := config["factor"]
	if !ok {
		return nil, fmt.Errorf("config.factor is required")
	}
	factor, ok := v.(ir.IRInt)
	if !ok {
		return nil, fmt.Errorf("config.factor: expected int, got %s", ir.KindOf(v))
	}
	return &Func{
		Desc: Descriptor{Kind: KindScale, Inputs: []string{PortValue}, Outputs: []string{PortValue}, Config: config},
		Fn: func(_ context.Context, in ir.IRObject) (ir.IRObject, error) {
			n, ok := in[PortValue].(ir.IRInt)
			if !ok {
				return nil, fmt.Errorf("input %q: expected int", PortValue)
			}
			return ir.IRObject{PortValue: n * factor}, nil
		},
	}, nil
}

func newIdentity(config ir.IRObject) (Node, error) {
	return &Func{
		Desc: Descriptor{Kind: KindIdentity, Inputs: []string{PortValue}, Outputs: []string{PortValue}, Config: config},
		Fn: func(_ context.Context, in ir.IRObject) (ir.IRObject, error) {
			v, ok := in[PortValue]
			if !ok {
				v = ir.IRNull{}
			}
			return ir.IRObject{PortValue: v}, nil
		},
	}, nil
}

func newFail(config ir.IRObject) (Node, error) {
	msg := "fail"
	if v, ok := config["message"].(ir.IRString); ok {
		msg = string(v)
	}
	return &Func{
		Desc: Descriptor{Kind: KindFail, Inputs: []string{PortValue}, Outputs: []string{PortValue}, Config: config},
		Fn: func(context.Context, ir.IRObject) (ir.IRObject, error) {
			return nil, fmt.Errorf("%w: %s", ErrNodeFailed, msg)
		},
	}, nil
}

// inputPorts reads config.inputs as a list of port names.
func inputPorts(config ir.IRObject, def []string) ([]string, error) {
	v, ok := config["inputs"]
	if !ok {
		return def, nil
	}
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("config.inputs: expected array, got %s", ir.KindOf(v))
	}
	ports := make([]string, 0, len(arr))
	seen := make(map[string]bool, len(arr))
	for i, elem := range arr {
		s, ok := elem.(ir.IRString)
		if !ok || s == "" {
			return nil, fmt.Errorf("config.inputs[%d]: expected non-empty string", i)
		}
		if seen[string(s)] {
			return nil, fmt.Errorf("config.inputs[%d]: duplicate port %q", i, s)
		}
		seen[string(s)] = true
		ports = append(ports, string(s))
	}
	return ports, nil
}
