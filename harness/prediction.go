package harness

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/amikos-tech/onnx-fuzz/internal/ortutil"
	"github.com/amikos-tech/onnx-fuzz/ort"
)

// TelemetryController is implemented by engines that can toggle runtime
// telemetry events.
type TelemetryController interface {
	SetTelemetry(enabled bool) error
}

// Prediction is one fuzz target: a single model bound to a single session,
// with input and output slots index-aligned to the session's name tables.
// A Prediction is not safe for concurrent use.
type Prediction struct {
	engine  Engine
	opts    options
	logger  *slog.Logger
	sink    *Sink
	session sessionHandle

	inputNames  []string
	outputNames []string
	inputs      []Tensor
	outputs     []Tensor
	closed      bool
}

// NewFromPath creates a Prediction whose engine loads the model file itself.
func NewFromPath(engine Engine, path string, opts ...Option) (*Prediction, error) {
	cfg, err := newPredictionConfig(engine, opts...)
	if err != nil {
		return nil, err
	}
	model, err := modelFromPath(path)
	if err != nil {
		return nil, err
	}
	session, err := model.load(engine)
	if err != nil {
		return nil, err
	}
	return newPrediction(engine, cfg, embeddedSession(session))
}

// NewFromGraph serializes graph into an engine-allocated buffer and creates a
// session from it. The buffer is freed by Close.
func NewFromGraph(engine Engine, graph Graph, opts ...Option) (*Prediction, error) {
	cfg, err := newPredictionConfig(engine, opts...)
	if err != nil {
		return nil, err
	}
	alloc, err := engine.Allocator()
	if err != nil {
		return nil, &ModelLoadError{Source: "graph", Err: err}
	}
	model, err := modelFromGraph(alloc, graph)
	if err != nil {
		return nil, err
	}
	return newOwnedPrediction(engine, cfg, model)
}

// NewFromBytes copies data, an ORT-format model, into an engine-allocated
// buffer and creates a session from it. The buffer is freed by Close.
func NewFromBytes(engine Engine, data []byte, opts ...Option) (*Prediction, error) {
	cfg, err := newPredictionConfig(engine, opts...)
	if err != nil {
		return nil, err
	}
	alloc, err := engine.Allocator()
	if err != nil {
		return nil, &ModelLoadError{Source: fmt.Sprintf("%d-byte buffer", len(data)), Err: err}
	}
	model, err := modelFromBytes(alloc, data)
	if err != nil {
		return nil, err
	}
	return newOwnedPrediction(engine, cfg, model)
}

func newPredictionConfig(engine Engine, opts ...Option) (options, error) {
	if engine == nil {
		return options{}, fmt.Errorf("engine cannot be nil")
	}
	return resolveOptions(opts...)
}

func newOwnedPrediction(engine Engine, cfg options, model *ModelHandle) (*Prediction, error) {
	session, err := model.load(engine)
	if err != nil {
		if releaseErr := model.Release(); releaseErr != nil {
			return nil, errors.Join(err, releaseErr)
		}
		return nil, err
	}
	return newPrediction(engine, cfg, ownedSession(session, model))
}

func newPrediction(engine Engine, cfg options, handle sessionHandle) (*Prediction, error) {
	p := &Prediction{
		engine:  engine,
		opts:    cfg,
		logger:  cfg.logger,
		sink:    cfg.sink,
		session: handle,
	}

	if tc, ok := engine.(TelemetryController); ok {
		if err := tc.SetTelemetry(cfg.telemetry); err != nil {
			return nil, errors.Join(fmt.Errorf("set telemetry: %w", err), p.session.release())
		}
	}

	session := handle.get()
	inputCount, outputCount := session.InputCount(), session.OutputCount()
	p.inputNames = make([]string, inputCount)
	for i := range p.inputNames {
		p.inputNames[i] = session.InputName(i)
	}
	p.outputNames = make([]string, outputCount)
	for i := range p.outputNames {
		p.outputNames[i] = session.OutputName(i)
	}
	p.inputs = make([]Tensor, inputCount)
	p.outputs = make([]Tensor, outputCount)

	p.logger.Debug("session ready", "inputs", p.inputNames, "outputs", p.outputNames)
	return p, nil
}

// InputNames returns the declared input names in engine order.
func (p *Prediction) InputNames() []string {
	return append([]string(nil), p.inputNames...)
}

// OutputNames returns the declared output names in engine order.
func (p *Prediction) OutputNames() []string {
	return append([]string(nil), p.outputNames...)
}

// Input returns the tensor bound to input slot i, or nil.
func (p *Prediction) Input(i int) Tensor {
	if i < 0 || i >= len(p.inputs) {
		return nil
	}
	return p.inputs[i]
}

// Output returns the tensor the last Run produced for output slot i, or nil.
func (p *Prediction) Output(i int) Tensor {
	if i < 0 || i >= len(p.outputs) {
		return nil
	}
	return p.outputs[i]
}

// SetupInput fills every supported input with random data, starting at seed
// and advancing the seed by one after each generated input.
func (p *Prediction) SetupInput(seed int64) error {
	return p.SetupInputWith(Generate, seed)
}

// SetupInputWith is SetupInput with a custom generator. Inputs that are not
// tensors, or whose element type is not Supported, are logged as unsupported
// and left unbound; generate is never called for them. NextSeed reports the
// seed that follows the call.
func (p *Prediction) SetupInputWith(generate InputGenerator, seed int64) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if generate == nil {
		return fmt.Errorf("input generator cannot be nil")
	}

	session := p.session.get()
	return p.sink.Scoped(func(s *Section) error {
		s.Println("input data:")
		for i, name := range p.inputNames {
			info, err := session.InputTypeInfo(i)
			if err != nil {
				return fmt.Errorf("query type of input %q: %w", name, err)
			}
			if !info.IsTensor() || !Supported(info.ElementType) {
				p.reportUnsupported(s, &UnsupportedTypeError{Input: name, ONNXType: info.ONNXType, ElementType: info.ElementType})
				continue
			}

			shape := p.opts.resolveShape(name, info.Shape)
			count, err := ort.ShapeElementCount(shape)
			if err != nil {
				return fmt.Errorf("input %q: %w", name, err)
			}
			data, err := generate(info.ElementType, count, seed)
			if err != nil {
				var unsupported *UnsupportedTypeError
				if errors.As(err, &unsupported) {
					unsupported.Input = name
					p.reportUnsupported(s, unsupported)
					continue
				}
				return fmt.Errorf("generate input %q: %w", name, err)
			}
			line, err := FormatTensor(name, data)
			if err != nil {
				return err
			}
			s.Println(line)
			p.logger.Debug("generated input", "input", name, "type", info.ElementType, "shape", shape, "seed", seed)
			seed++

			tensor, err := p.engine.NewTensor(shape, data)
			if err != nil {
				return fmt.Errorf("create tensor for input %q: %w", name, err)
			}
			if err := p.BindInput(i, tensor); err != nil {
				return errors.Join(err, tensor.Destroy())
			}
		}
		return nil
	})
}

// NextSeed returns the seed that follows a SetupInput call started at seed,
// which advances once per generated input.
func (p *Prediction) NextSeed(seed int64) (int64, error) {
	session := p.session.get()
	if session == nil {
		return 0, fmt.Errorf("prediction is closed")
	}
	for i, name := range p.inputNames {
		info, err := session.InputTypeInfo(i)
		if err != nil {
			return 0, fmt.Errorf("query type of input %q: %w", name, err)
		}
		if info.IsTensor() && Supported(info.ElementType) {
			seed++
		}
	}
	return seed, nil
}

func (p *Prediction) reportUnsupported(s *Section, err *UnsupportedTypeError) {
	s.Printf("Unsupported input %s: %s\n", err.Input, err.kind())
	p.logger.Warn("skipping unsupported input", "input", err.Input, "err", err)
}

// BindInput stores tensor in input slot i, destroying any previous binding.
// The engine is not involved until Run.
func (p *Prediction) BindInput(i int, tensor Tensor) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if i < 0 || i >= len(p.inputs) {
		return fmt.Errorf("input index %d out of range [0, %d)", i, len(p.inputs))
	}
	var err error
	if previous := p.inputs[i]; previous != nil && previous != tensor {
		err = previous.Destroy()
	}
	p.inputs[i] = tensor
	if err != nil {
		return fmt.Errorf("destroy previous binding of input %q: %w", p.inputNames[i], err)
	}
	return nil
}

// Run executes inference with every bound input; unbound slots are left out
// of the engine call. Output slots are replaced with the engine's results.
// Engine faults are written to the sink and returned as *InferenceError.
func (p *Prediction) Run() error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	names := make([]string, 0, len(p.inputs))
	values := make([]Tensor, 0, len(p.inputs))
	for i, tensor := range p.inputs {
		if tensor != nil {
			names = append(names, p.inputNames[i])
			values = append(values, tensor)
		}
	}

	if err := p.clearOutputs(); err != nil {
		return err
	}

	if err := p.logLine("inference starting"); err != nil {
		return err
	}
	p.logger.Info("inference starting", "bound", len(values), "inputs", len(p.inputs))

	if err := p.session.get().Run(names, values, p.outputNames, p.outputs); err != nil {
		runErr := &InferenceError{Bound: len(values), Err: err}
		p.logger.Error("inference failed", "bound", len(values), "err", err)
		if logErr := p.logLine(fmt.Sprintf("something went wrong in inference: %v", err)); logErr != nil {
			return errors.Join(runErr, logErr)
		}
		return runErr
	}

	p.logger.Info("inference completed", "outputs", len(p.outputs))
	return p.logLine("inference completed")
}

func (p *Prediction) logLine(line string) error {
	return p.sink.Scoped(func(s *Section) error {
		s.Println(line)
		return nil
	})
}

func (p *Prediction) clearOutputs() error {
	resources := make([]ortutil.Destroyer, 0, len(p.outputs))
	for i, tensor := range p.outputs {
		if tensor != nil {
			resources = append(resources, tensor)
		}
		p.outputs[i] = nil
	}
	if err := ortutil.DestroyAll(resources...); err != nil {
		return fmt.Errorf("destroy previous outputs: %w", err)
	}
	return nil
}

// PrintInputs writes the bound inputs as one section.
func (p *Prediction) PrintInputs() error {
	return p.printTensors("input data:", p.inputNames, p.inputs)
}

// PrintOutputs writes the outputs of the last Run as one section.
func (p *Prediction) PrintOutputs() error {
	return p.printTensors("output data:", p.outputNames, p.outputs)
}

func (p *Prediction) printTensors(header string, names []string, tensors []Tensor) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	return p.sink.Scoped(func(s *Section) error {
		s.Println(header)
		writeTensors(s, names, tensors)
		return nil
	})
}

// Close destroys all bound tensors, then the session, then any owned model
// bytes. Further calls are no-ops.
func (p *Prediction) Close() error {
	if p == nil || p.closed {
		return nil
	}
	p.closed = true

	resources := make([]ortutil.Destroyer, 0, len(p.inputs)+len(p.outputs))
	for _, tensor := range append(append([]Tensor(nil), p.inputs...), p.outputs...) {
		if tensor != nil {
			resources = append(resources, tensor)
		}
	}
	clear(p.inputs)
	clear(p.outputs)

	err := errors.Join(ortutil.DestroyAll(resources...), p.session.release())
	if flushErr := p.sink.Flush(); flushErr != nil {
		err = errors.Join(err, fmt.Errorf("flush log: %w", flushErr))
	}
	return err
}

func (p *Prediction) checkOpen() error {
	if p == nil || p.closed {
		return fmt.Errorf("prediction is closed")
	}
	return nil
}
