package harness

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

// DefaultFreeDimension replaces symbolic dimensions when no override is set.
const DefaultFreeDimension = 1

// Option configures a Prediction.
type Option func(*options) error

type options struct {
	logger        *slog.Logger
	sink          *Sink
	telemetry     bool
	freeDimension int64
	inputShapes   map[string]ort.Shape
}

func defaultOptions() options {
	return options{
		logger:        slog.New(slog.DiscardHandler),
		telemetry:     true,
		freeDimension: DefaultFreeDimension,
		inputShapes:   make(map[string]ort.Shape),
	}
}

func resolveOptions(opts ...Option) (options, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return options{}, err
		}
	}
	if cfg.sink == nil {
		cfg.sink = NewSink(os.Stdout)
	}
	return cfg, nil
}

// WithLogger sets the structured logger used for diagnostics. The fuzz log
// itself goes to the Sink.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithSink sets the fuzz log. The default writes to standard output.
func WithSink(sink *Sink) Option {
	return func(o *options) error {
		if sink == nil {
			return fmt.Errorf("sink cannot be nil")
		}
		o.sink = sink
		return nil
	}
}

// WithTelemetry switches engine telemetry events on or off when the Prediction
// is created. Telemetry is enabled by default. Engines that do not implement
// TelemetryController ignore it.
func WithTelemetry(enabled bool) Option {
	return func(o *options) error {
		o.telemetry = enabled
		return nil
	}
}

// WithFreeDimension sets the value substituted for symbolic dimensions such
// as a dynamic batch size.
func WithFreeDimension(size int64) Option {
	return func(o *options) error {
		if size <= 0 {
			return fmt.Errorf("free dimension must be > 0, got %d", size)
		}
		o.freeDimension = size
		return nil
	}
}

// WithInputShape replaces the declared shape of the named input.
func WithInputShape(name string, shape ort.Shape) Option {
	return func(o *options) error {
		if name == "" {
			return fmt.Errorf("input name cannot be empty")
		}
		for i, dim := range shape {
			if dim < 0 {
				return fmt.Errorf("shape override for %q: dimension %d is negative (%d)", name, i, dim)
			}
		}
		o.inputShapes[name] = append(ort.Shape{}, shape...)
		return nil
	}
}

// resolveShape applies the override for name, or replaces every symbolic
// dimension of declared with the free dimension.
func (o *options) resolveShape(name string, declared ort.Shape) ort.Shape {
	if override, ok := o.inputShapes[name]; ok {
		return append(ort.Shape{}, override...)
	}
	shape := make(ort.Shape, len(declared))
	for i, dim := range declared {
		if dim < 0 {
			dim = o.freeDimension
		}
		shape[i] = dim
	}
	return shape
}
