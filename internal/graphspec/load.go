package graphspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"
)

// Error codes for graph loading.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No graph files found
	ErrCodeLoadFailed  = "E004" // Read or parse failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidNode     = "E101" // Node missing name or kind
	ErrCodeDuplicateNode   = "E102" // Node name declared twice
	ErrCodeUnknownNode     = "E103" // Reference to an undeclared node
	ErrCodeInvalidRef      = "E104" // Malformed dep or port reference
	ErrCodeInvalidValue    = "E105" // Config value that is not concrete, or a float
	ErrCodeInvalidBoundary = "E106" // Boundary missing id or declared twice
)

// LoadError is a graph file problem, with a CUE source position when one is
// known.
type LoadError struct {
	Code    string
	Field   string
	Message string
	File    string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	switch {
	case e.Pos.IsValid():
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// CodeOf returns the LoadError code in err, or "".
func CodeOf(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// Load reads a graph from path: a directory of .cue files, a .cue file, or
// a .yaml/.yml file. The graph is validated; all validation problems are
// returned joined.
func Load(path string) (*Graph, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing graph: %v", err)}
	}

	var g *Graph
	switch ext := filepath.Ext(path); {
	case info.IsDir():
		g, err = LoadCUEDir(path)
	case ext == ".cue":
		g, err = LoadCUEFile(path)
	case ext == ".yaml" || ext == ".yml":
		g, err = LoadYAML(path)
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, File: path, Message: fmt.Sprintf("unsupported graph file extension %q", ext)}
	}
	if err != nil {
		return nil, err
	}
	if errs := g.Validate(); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g, nil
}
