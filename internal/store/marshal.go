package store

import (
	"fmt"

	"github.com/roach88/nodegraph/internal/ir"
)

// marshalOutputs converts task outputs to canonical JSON TEXT for storage.
func marshalOutputs(outputs ir.IRObject) (string, error) {
	if outputs == nil {
		outputs = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(outputs)
	if err != nil {
		return "", fmt.Errorf("marshal outputs: %w", err)
	}
	return string(data), nil
}

// unmarshalOutputs parses stored outputs.
func unmarshalOutputs(data string) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal outputs: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal outputs: expected object, got %s", ir.KindOf(v))
	}
	return obj, nil
}
