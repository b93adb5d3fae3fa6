package harness

import (
	"errors"
	"fmt"

	"github.com/x448/float16"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

// ORTOption configures the engine returned by NewORTEngine.
type ORTOption func(*ORTEngine) error

// WithIntraOpThreads sets the intra-op thread count of every session. Zero
// lets ONNX Runtime choose.
func WithIntraOpThreads(threads int) ORTOption {
	return func(e *ORTEngine) error {
		if threads < 0 {
			return fmt.Errorf("intra-op threads must be >= 0, got %d", threads)
		}
		e.intraOpThreads = threads
		return nil
	}
}

// WithInterOpThreads sets the inter-op thread count of every session.
func WithInterOpThreads(threads int) ORTOption {
	return func(e *ORTEngine) error {
		if threads < 0 {
			return fmt.Errorf("inter-op threads must be >= 0, got %d", threads)
		}
		e.interOpThreads = threads
		return nil
	}
}

// WithGraphOptimizationLevel sets the optimization level of every session.
func WithGraphOptimizationLevel(level ort.GraphOptimizationLevel) ORTOption {
	return func(e *ORTEngine) error {
		if level < ort.GraphOptimizationLevelDisableAll || level > ort.GraphOptimizationLevelEnableAll {
			return fmt.Errorf("invalid graph optimization level %d", level)
		}
		e.optimizationLevel = level
		return nil
	}
}

// ORTEngine is the Engine backed by the ONNX Runtime shared library. The ort
// environment must be initialized before NewORTEngine and outlive the engine.
type ORTEngine struct {
	intraOpThreads    int
	interOpThreads    int
	optimizationLevel ort.GraphOptimizationLevel
}

// NewORTEngine returns an Engine over the initialized ort environment.
func NewORTEngine(opts ...ORTOption) (*ORTEngine, error) {
	if !ort.IsInitialized() {
		return nil, fmt.Errorf("ONNX Runtime not initialized")
	}
	e := &ORTEngine{optimizationLevel: ort.GraphOptimizationLevelEnableAll}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *ORTEngine) LoadFromPath(path string) (Session, error) {
	options, err := e.sessionOptions(ModelFormatONNX)
	if err != nil {
		return nil, err
	}
	defer func() { _ = options.Destroy() }()

	session, err := ort.NewSession(path, options)
	if err != nil {
		return nil, err
	}
	return newORTSession(session), nil
}

func (e *ORTEngine) LoadFromBytes(buf []byte, format ModelFormat) (Session, error) {
	options, err := e.sessionOptions(format)
	if err != nil {
		return nil, err
	}
	defer func() { _ = options.Destroy() }()

	session, err := ort.NewSessionFromBytes(buf, options)
	if err != nil {
		return nil, err
	}
	return newORTSession(session), nil
}

func (e *ORTEngine) sessionOptions(format ModelFormat) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	configure := func() error {
		if err := options.SetIntraOpNumThreads(e.intraOpThreads); err != nil {
			return err
		}
		if err := options.SetInterOpNumThreads(e.interOpThreads); err != nil {
			return err
		}
		if err := options.SetGraphOptimizationLevel(e.optimizationLevel); err != nil {
			return err
		}
		if format == ModelFormatORT {
			return options.AddConfigEntry(ort.SessionOptionsConfigLoadModelFormat, ort.ModelFormatORT)
		}
		return nil
	}
	if err := configure(); err != nil {
		return nil, errors.Join(err, options.Destroy())
	}
	return options, nil
}

func (e *ORTEngine) Allocator() (Allocator, error) {
	return ort.DefaultAllocator()
}

// NewTensor accepts a slice of any element type Generate produces.
func (e *ORTEngine) NewTensor(shape ort.Shape, data any) (Tensor, error) {
	switch values := data.(type) {
	case []float32:
		return newORTInputTensor(shape, values)
	case []float64:
		return newORTInputTensor(shape, values)
	case []float16.Float16:
		return newORTInputTensor(shape, values)
	case []int8:
		return newORTInputTensor(shape, values)
	case []int16:
		return newORTInputTensor(shape, values)
	case []int32:
		return newORTInputTensor(shape, values)
	case []int64:
		return newORTInputTensor(shape, values)
	case []uint8:
		return newORTInputTensor(shape, values)
	case []uint16:
		return newORTInputTensor(shape, values)
	case []uint32:
		return newORTInputTensor(shape, values)
	case []uint64:
		return newORTInputTensor(shape, values)
	case []bool:
		return newORTInputTensor(shape, values)
	default:
		return nil, fmt.Errorf("unsupported tensor data %T", data)
	}
}

// SetTelemetry implements TelemetryController.
func (e *ORTEngine) SetTelemetry(enabled bool) error {
	if enabled {
		return ort.EnableTelemetryEvents()
	}
	return ort.DisableTelemetryEvents()
}

// ortBacked is implemented by the tensors this engine creates.
type ortBacked interface {
	ortValue() ort.Value
}

type ortInputTensor[T ort.TensorElement] struct {
	*ort.Tensor[T]
}

func newORTInputTensor[T ort.TensorElement](shape ort.Shape, data []T) (Tensor, error) {
	tensor, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, err
	}
	return ortInputTensor[T]{tensor}, nil
}

func (t ortInputTensor[T]) Data() (any, error) {
	data := t.GetData()
	if data == nil {
		return nil, fmt.Errorf("tensor has been destroyed")
	}
	return append([]T(nil), data...), nil
}

func (t ortInputTensor[T]) ortValue() ort.Value { return t.Tensor }

type ortOutputTensor struct {
	*ort.DynamicTensor
}

func (t ortOutputTensor) ortValue() ort.Value { return t.DynamicTensor }

type ortSession struct {
	session     *ort.Session
	inputNames  []string
	outputNames []string
}

func newORTSession(session *ort.Session) *ortSession {
	return &ortSession{
		session:     session,
		inputNames:  session.InputNames(),
		outputNames: session.OutputNames(),
	}
}

func (s *ortSession) InputCount() int  { return len(s.inputNames) }
func (s *ortSession) OutputCount() int { return len(s.outputNames) }

func (s *ortSession) InputName(i int) string  { return s.inputNames[i] }
func (s *ortSession) OutputName(i int) string { return s.outputNames[i] }

func (s *ortSession) InputTypeInfo(i int) (TypeInfo, error) {
	info, err := s.session.InputTypeInfo(i)
	if err != nil {
		return TypeInfo{}, err
	}
	return convertTypeInfo(info), nil
}

func (s *ortSession) OutputTypeInfo(i int) (TypeInfo, error) {
	info, err := s.session.OutputTypeInfo(i)
	if err != nil {
		return TypeInfo{}, err
	}
	return convertTypeInfo(info), nil
}

func convertTypeInfo(info ort.TypeInfo) TypeInfo {
	out := TypeInfo{ONNXType: info.ONNXType}
	if info.Tensor != nil {
		out.ElementType = info.Tensor.ElementType
		out.Shape = append(ort.Shape{}, info.Tensor.Shape...)
	}
	return out
}

func (s *ortSession) Run(inputNames []string, inputs []Tensor, outputNames []string, outputs []Tensor) error {
	inputValues, err := ortValues(inputs, "input")
	if err != nil {
		return err
	}
	outputValues, err := ortValues(outputs, "output")
	if err != nil {
		return err
	}

	if err := s.session.Run(inputNames, inputValues, outputNames, outputValues); err != nil {
		return err
	}

	for i := range outputs {
		if outputs[i] != nil {
			continue
		}
		if dynamic, ok := outputValues[i].(*ort.DynamicTensor); ok {
			outputs[i] = ortOutputTensor{dynamic}
		}
	}
	return nil
}

// ortValues unwraps engine tensors; nil slots stay nil.
func ortValues(tensors []Tensor, kind string) ([]ort.Value, error) {
	values := make([]ort.Value, len(tensors))
	for i, tensor := range tensors {
		if tensor == nil {
			continue
		}
		backed, ok := tensor.(ortBacked)
		if !ok {
			return nil, fmt.Errorf("%s %d: tensor %T was not created by the ONNX Runtime engine", kind, i, tensor)
		}
		values[i] = backed.ortValue()
	}
	return values, nil
}

func (s *ortSession) Destroy() error {
	return s.session.Destroy()
}
