package harness

import "github.com/amikos-tech/onnx-fuzz/ort"

// Engine is the inference runtime the harness drives. NewORTEngine returns
// the ONNX Runtime implementation.
type Engine interface {
	LoadFromPath(path string) (Session, error)
	// LoadFromBytes creates a session from buf. The engine may read buf only
	// during the call; the caller keeps ownership.
	LoadFromBytes(buf []byte, format ModelFormat) (Session, error)
	Allocator() (Allocator, error)
	// NewTensor wraps data, a typed slice such as []float32, in an engine tensor.
	NewTensor(shape ort.Shape, data any) (Tensor, error)
}

// Allocator hands out engine-owned memory. Every buffer returned by Alloc must
// be passed to Free on the same Allocator exactly once.
type Allocator interface {
	Alloc(size int) ([]byte, error)
	Free(buf []byte) error
}

// Session is one engine execution context bound to a single model.
type Session interface {
	InputCount() int
	OutputCount() int
	InputName(i int) string
	OutputName(i int) string
	InputTypeInfo(i int) (TypeInfo, error)
	OutputTypeInfo(i int) (TypeInfo, error)
	// Run executes the model. inputs is index-aligned with inputNames and
	// outputs with outputNames; nil output slots are filled by the engine.
	Run(inputNames []string, inputs []Tensor, outputNames []string, outputs []Tensor) error
	Destroy() error
}

// Tensor is an engine value bound to an input or produced as an output.
type Tensor interface {
	Shape() ort.Shape
	ElementType() ort.TensorElementDataType
	// Data returns a copy of the contents as a typed slice.
	Data() (any, error)
	Destroy() error
}

// TypeInfo is the declared type of a session input or output. ElementType and
// Shape are only meaningful when ONNXType is ort.ONNXTypeTensor. Symbolic
// dimensions are negative.
type TypeInfo struct {
	ONNXType    ort.ONNXType
	ElementType ort.TensorElementDataType
	Shape       ort.Shape
}

// IsTensor reports whether the value is a tensor.
func (t TypeInfo) IsTensor() bool {
	return t.ONNXType == ort.ONNXTypeTensor
}

// ModelFormat tells the engine how an in-memory model is serialized.
type ModelFormat int

const (
	// ModelFormatONNX is the protobuf ModelProto exchange format.
	ModelFormatONNX ModelFormat = iota
	// ModelFormatORT is ONNX Runtime's compact flatbuffer format.
	ModelFormatORT
)

func (f ModelFormat) String() string {
	switch f {
	case ModelFormatONNX:
		return ort.ModelFormatONNX
	case ModelFormatORT:
		return ort.ModelFormatORT
	default:
		return "unknown"
	}
}
