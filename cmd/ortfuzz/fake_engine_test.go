package main

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/amikos-tech/onnx-fuzz/harness"
	"github.com/amikos-tech/onnx-fuzz/internal/config"
	"github.com/amikos-tech/onnx-fuzz/ort"
)

type stubTensor struct {
	shape ort.Shape
	data  []float32
}

func (t *stubTensor) Shape() ort.Shape                       { return t.shape }
func (t *stubTensor) ElementType() ort.TensorElementDataType { return ort.TensorElementDataTypeFloat }
func (t *stubTensor) Data() (any, error)                     { return append([]float32(nil), t.data...), nil }
func (t *stubTensor) Destroy() error                         { return nil }

type stubAllocator struct{}

func (stubAllocator) Alloc(size int) ([]byte, error) { return make([]byte, size), nil }
func (stubAllocator) Free([]byte) error              { return nil }

// stubEngine serves a model with one float input "x" of shape [2] and echoes
// it as output "y".
type stubEngine struct {
	runErr    error
	pathLoads []string
	formats   []harness.ModelFormat
	runs      int
	released  int
}

func (e *stubEngine) LoadFromPath(path string) (harness.Session, error) {
	e.pathLoads = append(e.pathLoads, path)
	return &stubSession{engine: e}, nil
}

func (e *stubEngine) LoadFromBytes(_ []byte, format harness.ModelFormat) (harness.Session, error) {
	e.formats = append(e.formats, format)
	return &stubSession{engine: e}, nil
}

func (e *stubEngine) Allocator() (harness.Allocator, error) { return stubAllocator{}, nil }

func (e *stubEngine) NewTensor(shape ort.Shape, data any) (harness.Tensor, error) {
	values, ok := data.([]float32)
	if !ok {
		return nil, fmt.Errorf("stub engine cannot hold %T", data)
	}
	return &stubTensor{shape: shape, data: values}, nil
}

type stubSession struct {
	engine *stubEngine
}

var stubInfo = harness.TypeInfo{ONNXType: ort.ONNXTypeTensor, ElementType: ort.TensorElementDataTypeFloat, Shape: ort.Shape{2}}

func (s *stubSession) InputCount() int                              { return 1 }
func (s *stubSession) OutputCount() int                             { return 1 }
func (s *stubSession) InputName(int) string                         { return "x" }
func (s *stubSession) OutputName(int) string                        { return "y" }
func (s *stubSession) InputTypeInfo(int) (harness.TypeInfo, error)  { return stubInfo, nil }
func (s *stubSession) OutputTypeInfo(int) (harness.TypeInfo, error) { return stubInfo, nil }
func (s *stubSession) Destroy() error                               { return nil }

func (s *stubSession) Run(_ []string, inputs []harness.Tensor, _ []string, outputs []harness.Tensor) error {
	s.engine.runs++
	if s.engine.runErr != nil {
		return s.engine.runErr
	}
	in := inputs[0].(*stubTensor)
	outputs[0] = &stubTensor{shape: in.shape, data: append([]float32(nil), in.data...)}
	return nil
}

// useStubEngine makes the commands run against engine instead of ONNX Runtime.
func useStubEngine(t *testing.T, engine *stubEngine) {
	t.Helper()
	prev := newEngine
	newEngine = func(context.Context, config.RuntimeConfig, *slog.Logger) (harness.Engine, func() error, error) {
		return engine, func() error {
			engine.released++
			return nil
		}, nil
	}
	t.Cleanup(func() { newEngine = prev })
}
