package harness

import (
	"errors"
	"fmt"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

var (
	// ErrModelLoad matches every *ModelLoadError.
	ErrModelLoad = errors.New("model load failed")
	// ErrUnsupportedType matches every *UnsupportedTypeError.
	ErrUnsupportedType = errors.New("unsupported input type")
	// ErrInference matches every *InferenceError.
	ErrInference = errors.New("inference failed")
)

// ModelLoadError reports that a model could not be turned into a session.
// It is fatal to the Prediction being constructed.
type ModelLoadError struct {
	// Source describes where the model came from, for example a path or
	// "1234-byte graph".
	Source string
	Err    error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model from %s: %v", e.Source, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

func (e *ModelLoadError) Is(target error) bool { return target == ErrModelLoad }

// UnsupportedTypeError reports an input whose declared type has no generator.
type UnsupportedTypeError struct {
	// Input is empty when the error comes straight from Generate.
	Input       string
	ONNXType    ort.ONNXType
	ElementType ort.TensorElementDataType
}

func (e *UnsupportedTypeError) Error() string {
	kind := e.kind()
	if e.Input == "" {
		return "unsupported " + kind
	}
	return fmt.Sprintf("unsupported %s for input %q", kind, e.Input)
}

func (e *UnsupportedTypeError) kind() string {
	if e.ONNXType != ort.ONNXTypeTensor && e.ONNXType != ort.ONNXTypeUnknown {
		return "value type " + e.ONNXType.String()
	}
	return "element type " + e.ElementType.String()
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }

// InferenceError reports an engine fault during Run.
type InferenceError struct {
	// Bound is the number of inputs passed to the engine.
	Bound int
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference with %d bound inputs: %v", e.Bound, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func (e *InferenceError) Is(target error) bool { return target == ErrInference }
