package harness

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Graph is an in-memory model that can serialize itself into a caller
// provided buffer of exactly Size bytes.
type Graph interface {
	Size() int
	MarshalTo(buf []byte) (int, error)
}

// ProtoGraph adapts a protobuf message, typically an onnx.ModelProto, to Graph.
func ProtoGraph(m proto.Message) Graph {
	return protoGraph{message: m}
}

type protoGraph struct {
	message proto.Message
}

func (g protoGraph) Size() int {
	return proto.Size(g.message)
}

func (g protoGraph) MarshalTo(buf []byte) (int, error) {
	out, err := proto.MarshalOptions{Deterministic: true}.MarshalAppend(buf[:0], g.message)
	if err != nil {
		return 0, err
	}
	if len(out) > len(buf) {
		return 0, fmt.Errorf("serialized graph needs %d bytes, buffer holds %d", len(out), len(buf))
	}
	return len(out), nil
}

// SerializedGraph adapts an already encoded model to Graph.
func SerializedGraph(data []byte) Graph {
	return serializedGraph(data)
}

type serializedGraph []byte

func (g serializedGraph) Size() int { return len(g) }

func (g serializedGraph) MarshalTo(buf []byte) (int, error) {
	if len(buf) < len(g) {
		return 0, fmt.Errorf("serialized graph needs %d bytes, buffer holds %d", len(g), len(buf))
	}
	return copy(buf, g), nil
}

// ModelHandle owns the model bytes handed to the engine. Path models own no
// buffer; graph and byte models own one engine-allocated buffer that is freed
// by Release with the allocator that produced it.
type ModelHandle struct {
	path   string
	alloc  Allocator
	buf    []byte
	format ModelFormat
}

func modelFromPath(path string) (*ModelHandle, error) {
	if path == "" {
		return nil, &ModelLoadError{Source: "path", Err: errors.New("model path cannot be empty")}
	}
	return &ModelHandle{path: path, format: ModelFormatONNX}, nil
}

func modelFromGraph(alloc Allocator, graph Graph) (*ModelHandle, error) {
	if graph == nil {
		return nil, &ModelLoadError{Source: "graph", Err: errors.New("graph cannot be nil")}
	}
	size := graph.Size()
	source := fmt.Sprintf("%d-byte graph", size)
	if size <= 0 {
		return nil, &ModelLoadError{Source: source, Err: errors.New("graph serializes to no bytes")}
	}

	m, err := allocateModel(alloc, size, ModelFormatONNX)
	if err != nil {
		return nil, &ModelLoadError{Source: source, Err: err}
	}
	n, err := graph.MarshalTo(m.buf)
	if err == nil && n != size {
		err = fmt.Errorf("graph wrote %d of %d bytes", n, size)
	}
	if err != nil {
		return nil, &ModelLoadError{Source: source, Err: errors.Join(fmt.Errorf("serialize graph: %w", err), m.Release())}
	}
	return m, nil
}

// modelFromBytes copies data into an engine buffer. The bytes are always
// loaded as ORT format.
func modelFromBytes(alloc Allocator, data []byte) (*ModelHandle, error) {
	source := fmt.Sprintf("%d-byte buffer", len(data))
	if len(data) == 0 {
		return nil, &ModelLoadError{Source: source, Err: errors.New("model data cannot be empty")}
	}

	m, err := allocateModel(alloc, len(data), ModelFormatORT)
	if err != nil {
		return nil, &ModelLoadError{Source: source, Err: err}
	}
	copy(m.buf, data)
	return m, nil
}

func allocateModel(alloc Allocator, size int, format ModelFormat) (*ModelHandle, error) {
	if alloc == nil {
		return nil, errors.New("allocator cannot be nil")
	}
	buf, err := alloc.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("allocate model buffer: %w", err)
	}
	if len(buf) != size {
		freeErr := alloc.Free(buf)
		return nil, errors.Join(fmt.Errorf("allocator returned %d bytes, want %d", len(buf), size), freeErr)
	}
	return &ModelHandle{alloc: alloc, buf: buf, format: format}, nil
}

// Bytes returns the owned buffer, or nil for path models and after Release.
func (m *ModelHandle) Bytes() []byte { return m.buf }

// Path returns the model path, or "" for in-memory models.
func (m *ModelHandle) Path() string { return m.path }

// Format returns the format hint passed to the engine.
func (m *ModelHandle) Format() ModelFormat { return m.format }

func (m *ModelHandle) source() string {
	if m.path != "" {
		return m.path
	}
	return fmt.Sprintf("%d-byte %s buffer", len(m.buf), m.format)
}

func (m *ModelHandle) load(engine Engine) (Session, error) {
	var (
		session Session
		err     error
	)
	if m.path != "" {
		session, err = engine.LoadFromPath(m.path)
	} else {
		session, err = engine.LoadFromBytes(m.buf, m.format)
	}
	if err != nil {
		return nil, &ModelLoadError{Source: m.source(), Err: err}
	}
	if session == nil {
		return nil, &ModelLoadError{Source: m.source(), Err: errors.New("engine returned a nil session")}
	}
	return session, nil
}

// Release frees the owned buffer. Further calls are no-ops.
func (m *ModelHandle) Release() error {
	if m == nil || m.buf == nil {
		return nil
	}
	buf := m.buf
	m.buf = nil
	if err := m.alloc.Free(buf); err != nil {
		return fmt.Errorf("free model buffer: %w", err)
	}
	return nil
}
