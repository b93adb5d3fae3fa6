package harness

import (
	"errors"
	"fmt"

	"github.com/x448/float16"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

type fakeTensor struct {
	shape     ort.Shape
	elemType  ort.TensorElementDataType
	data      any
	dataErr   error
	destroyed int
}

func (t *fakeTensor) Shape() ort.Shape                       { return t.shape }
func (t *fakeTensor) ElementType() ort.TensorElementDataType { return t.elemType }

func (t *fakeTensor) Data() (any, error) {
	if t.destroyed > 0 {
		return nil, errors.New("tensor has been destroyed")
	}
	return t.data, t.dataErr
}

func (t *fakeTensor) Destroy() error {
	t.destroyed++
	return nil
}

// fakeAllocator tracks live buffers by their first byte.
type fakeAllocator struct {
	allocs  int
	frees   int
	live    map[*byte]int
	failErr error
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{live: make(map[*byte]int)}
}

func (a *fakeAllocator) Alloc(size int) ([]byte, error) {
	if a.failErr != nil {
		return nil, a.failErr
	}
	buf := make([]byte, size)
	a.live[&buf[0]] = size
	a.allocs++
	return buf, nil
}

func (a *fakeAllocator) Free(buf []byte) error {
	if len(buf) == 0 {
		return errors.New("free of empty buffer")
	}
	if _, ok := a.live[&buf[0]]; !ok {
		return errors.New("buffer was not allocated here")
	}
	delete(a.live, &buf[0])
	a.frees++
	return nil
}

type fakePort struct {
	name string
	info TypeInfo
	// data is what the engine produces for an output.
	data any
}

func tensorPort(name string, elemType ort.TensorElementDataType, dims ...int64) fakePort {
	return fakePort{name: name, info: TypeInfo{ONNXType: ort.ONNXTypeTensor, ElementType: elemType, Shape: dims}}
}

type byteLoad struct {
	data   []byte
	format ModelFormat
}

type fakeEngine struct {
	inputs  []fakePort
	outputs []fakePort

	alloc    *fakeAllocator
	allocErr error
	loadErr  error
	runErr   error
	// rejectUnbound fails Run when an input is left out, like a real engine
	// with no default for it.
	rejectUnbound bool
	telemetryErr  error

	telemetry []bool
	pathLoads []string
	byteLoads []byteLoad
	sessions  []*fakeSession
	tensors   []*fakeTensor
}

func newFakeEngine(inputs []fakePort, outputs ...fakePort) *fakeEngine {
	return &fakeEngine{inputs: inputs, outputs: outputs, alloc: newFakeAllocator()}
}

func (e *fakeEngine) LoadFromPath(path string) (Session, error) {
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	e.pathLoads = append(e.pathLoads, path)
	return e.newSession(), nil
}

func (e *fakeEngine) LoadFromBytes(buf []byte, format ModelFormat) (Session, error) {
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	e.byteLoads = append(e.byteLoads, byteLoad{data: append([]byte(nil), buf...), format: format})
	return e.newSession(), nil
}

func (e *fakeEngine) newSession() *fakeSession {
	s := &fakeSession{engine: e}
	e.sessions = append(e.sessions, s)
	return s
}

func (e *fakeEngine) Allocator() (Allocator, error) {
	if e.allocErr != nil {
		return nil, e.allocErr
	}
	return e.alloc, nil
}

func (e *fakeEngine) NewTensor(shape ort.Shape, data any) (Tensor, error) {
	elemType, err := fakeElementType(data)
	if err != nil {
		return nil, err
	}
	t := &fakeTensor{shape: append(ort.Shape{}, shape...), elemType: elemType, data: data}
	e.tensors = append(e.tensors, t)
	return t, nil
}

func (e *fakeEngine) SetTelemetry(enabled bool) error {
	e.telemetry = append(e.telemetry, enabled)
	return e.telemetryErr
}

func fakeElementType(data any) (ort.TensorElementDataType, error) {
	switch data.(type) {
	case []float32:
		return ort.TensorElementDataTypeFloat, nil
	case []float64:
		return ort.TensorElementDataTypeDouble, nil
	case []float16.Float16:
		return ort.TensorElementDataTypeFloat16, nil
	case []int32:
		return ort.TensorElementDataTypeInt32, nil
	case []int64:
		return ort.TensorElementDataTypeInt64, nil
	case []uint8:
		return ort.TensorElementDataTypeUint8, nil
	case []bool:
		return ort.TensorElementDataTypeBool, nil
	default:
		return ort.TensorElementDataTypeUndefined, fmt.Errorf("fake engine cannot hold %T", data)
	}
}

type fakeSession struct {
	engine     *fakeEngine
	destroyed  int
	runs       int
	lastNames  []string
	lastInputs []Tensor
	produced   []*fakeTensor
}

func (s *fakeSession) InputCount() int         { return len(s.engine.inputs) }
func (s *fakeSession) OutputCount() int        { return len(s.engine.outputs) }
func (s *fakeSession) InputName(i int) string  { return s.engine.inputs[i].name }
func (s *fakeSession) OutputName(i int) string { return s.engine.outputs[i].name }

func (s *fakeSession) InputTypeInfo(i int) (TypeInfo, error) {
	return s.engine.inputs[i].info, nil
}

func (s *fakeSession) OutputTypeInfo(i int) (TypeInfo, error) {
	return s.engine.outputs[i].info, nil
}

func (s *fakeSession) Run(inputNames []string, inputs []Tensor, outputNames []string, outputs []Tensor) error {
	s.runs++
	s.lastNames = append([]string(nil), inputNames...)
	s.lastInputs = append([]Tensor(nil), inputs...)

	if s.engine.runErr != nil {
		return s.engine.runErr
	}
	if s.engine.rejectUnbound && len(inputNames) < len(s.engine.inputs) {
		return fmt.Errorf("missing input: got %d of %d", len(inputNames), len(s.engine.inputs))
	}
	for i := range outputs {
		if outputs[i] != nil {
			continue
		}
		port := s.engine.outputs[i]
		t := &fakeTensor{shape: port.info.Shape, elemType: port.info.ElementType, data: port.data}
		s.produced = append(s.produced, t)
		outputs[i] = t
	}
	return nil
}

func (s *fakeSession) Destroy() error {
	s.destroyed++
	return nil
}
