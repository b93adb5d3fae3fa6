// Package onnxmodel encodes small ONNX ModelProto graphs with the protobuf
// wire format. It covers the subset needed to describe typed graph inputs and
// outputs wired through attribute-free operators.
package onnxmodel

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/amikos-tech/onnx-fuzz/ort"
)

const (
	// DefaultIRVersion is the ONNX IR version written when Model.IRVersion is zero.
	DefaultIRVersion = 8
	// DefaultOpsetVersion is the ai.onnx opset written when Model.OpsetVersion is zero.
	DefaultOpsetVersion = 17
)

// ModelProto, GraphProto, NodeProto, ValueInfoProto, TypeProto and
// TensorShapeProto field numbers from onnx.proto.
const (
	modelIRVersion    protowire.Number = 1
	modelProducerName protowire.Number = 2
	modelGraph        protowire.Number = 7
	modelOpsetImport  protowire.Number = 8

	opsetDomain  protowire.Number = 1
	opsetVersion protowire.Number = 2

	graphNode   protowire.Number = 1
	graphName   protowire.Number = 2
	graphInput  protowire.Number = 11
	graphOutput protowire.Number = 12

	nodeInput  protowire.Number = 1
	nodeOutput protowire.Number = 2
	nodeName   protowire.Number = 3
	nodeOpType protowire.Number = 4

	valueInfoName protowire.Number = 1
	valueInfoType protowire.Number = 2

	typeTensor protowire.Number = 1

	tensorElemType protowire.Number = 1
	tensorShape    protowire.Number = 2

	shapeDim protowire.Number = 1

	dimValue protowire.Number = 1
	dimParam protowire.Number = 2
)

// Dim is one tensor dimension: a fixed size, or a named symbolic size when
// Param is set.
type Dim struct {
	Value int64
	Param string
}

// Dims returns fixed dimensions.
func Dims(values ...int64) []Dim {
	dims := make([]Dim, len(values))
	for i, v := range values {
		dims[i] = Dim{Value: v}
	}
	return dims
}

// ValueInfo declares a graph input or output tensor.
type ValueInfo struct {
	Name     string
	ElemType ort.TensorElementDataType
	Shape    []Dim
}

// Node is an operator without attributes in the default domain.
type Node struct {
	Name    string
	OpType  string
	Inputs  []string
	Outputs []string
}

// Model is an ONNX model with a single graph.
type Model struct {
	IRVersion    int64
	OpsetVersion int64
	ProducerName string
	GraphName    string
	Nodes        []Node
	Inputs       []ValueInfo
	Outputs      []ValueInfo
}

// Validate checks that every node input is produced by a graph input or an
// earlier node, and that every graph output is produced.
func (m *Model) Validate() error {
	defined := make(map[string]bool, len(m.Inputs))
	for _, in := range m.Inputs {
		if in.Name == "" {
			return fmt.Errorf("graph input with empty name")
		}
		if defined[in.Name] {
			return fmt.Errorf("duplicate graph input %q", in.Name)
		}
		defined[in.Name] = true
	}
	for i, node := range m.Nodes {
		if node.OpType == "" {
			return fmt.Errorf("node %d has no op type", i)
		}
		for _, in := range node.Inputs {
			if in != "" && !defined[in] {
				return fmt.Errorf("node %d (%s) reads undefined value %q", i, node.OpType, in)
			}
		}
		for _, out := range node.Outputs {
			defined[out] = true
		}
	}
	if len(m.Outputs) == 0 {
		return fmt.Errorf("graph has no outputs")
	}
	for _, out := range m.Outputs {
		if !defined[out.Name] {
			return fmt.Errorf("graph output %q is never produced", out.Name)
		}
	}
	return nil
}

// Marshal encodes the model as a serialized ModelProto.
func (m *Model) Marshal() []byte {
	irVersion := m.IRVersion
	if irVersion == 0 {
		irVersion = DefaultIRVersion
	}
	opset := m.OpsetVersion
	if opset == 0 {
		opset = DefaultOpsetVersion
	}

	var b []byte
	b = appendVarintField(b, modelIRVersion, uint64(irVersion)) // #nosec G115
	if m.ProducerName != "" {
		b = protowire.AppendTag(b, modelProducerName, protowire.BytesType)
		b = protowire.AppendString(b, m.ProducerName)
	}
	b = appendMessageField(b, modelGraph, m.appendGraph(nil))

	var opsetID []byte
	opsetID = protowire.AppendTag(opsetID, opsetDomain, protowire.BytesType)
	opsetID = protowire.AppendString(opsetID, "")
	opsetID = appendVarintField(opsetID, opsetVersion, uint64(opset)) // #nosec G115
	return appendMessageField(b, modelOpsetImport, opsetID)
}

// Size returns the length of Marshal's output.
func (m *Model) Size() int {
	return len(m.Marshal())
}

// MarshalTo writes the encoded model into buf, which must hold Size bytes.
func (m *Model) MarshalTo(buf []byte) (int, error) {
	encoded := m.Marshal()
	if len(buf) < len(encoded) {
		return 0, fmt.Errorf("model needs %d bytes, buffer holds %d", len(encoded), len(buf))
	}
	return copy(buf, encoded), nil
}

func (m *Model) appendGraph(b []byte) []byte {
	for _, node := range m.Nodes {
		b = appendMessageField(b, graphNode, appendNode(nil, node))
	}
	name := m.GraphName
	if name == "" {
		name = "graph"
	}
	b = protowire.AppendTag(b, graphName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	for _, in := range m.Inputs {
		b = appendMessageField(b, graphInput, appendValueInfo(nil, in))
	}
	for _, out := range m.Outputs {
		b = appendMessageField(b, graphOutput, appendValueInfo(nil, out))
	}
	return b
}

func appendNode(b []byte, node Node) []byte {
	for _, in := range node.Inputs {
		b = protowire.AppendTag(b, nodeInput, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	for _, out := range node.Outputs {
		b = protowire.AppendTag(b, nodeOutput, protowire.BytesType)
		b = protowire.AppendString(b, out)
	}
	if node.Name != "" {
		b = protowire.AppendTag(b, nodeName, protowire.BytesType)
		b = protowire.AppendString(b, node.Name)
	}
	b = protowire.AppendTag(b, nodeOpType, protowire.BytesType)
	return protowire.AppendString(b, node.OpType)
}

func appendValueInfo(b []byte, info ValueInfo) []byte {
	b = protowire.AppendTag(b, valueInfoName, protowire.BytesType)
	b = protowire.AppendString(b, info.Name)

	var shape []byte
	for _, dim := range info.Shape {
		var d []byte
		if dim.Param != "" {
			d = protowire.AppendTag(d, dimParam, protowire.BytesType)
			d = protowire.AppendString(d, dim.Param)
		} else {
			d = appendVarintField(d, dimValue, uint64(dim.Value)) // #nosec G115
		}
		shape = appendMessageField(shape, shapeDim, d)
	}

	var tensor []byte
	tensor = appendVarintField(tensor, tensorElemType, uint64(info.ElemType)) // #nosec G115
	tensor = appendMessageField(tensor, tensorShape, shape)

	return appendMessageField(b, valueInfoType, appendMessageField(nil, typeTensor, tensor))
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// TwoInputModel returns a float32[4] input A and an int32[2] input B wired to
// outputs Y = A + A and Z = Identity(B).
func TwoInputModel() *Model {
	return &Model{
		ProducerName: "onnx-fuzz",
		GraphName:    "two_input",
		Nodes: []Node{
			{Name: "add", OpType: "Add", Inputs: []string{"A", "A"}, Outputs: []string{"Y"}},
			{Name: "identity", OpType: "Identity", Inputs: []string{"B"}, Outputs: []string{"Z"}},
		},
		Inputs: []ValueInfo{
			{Name: "A", ElemType: ort.TensorElementDataTypeFloat, Shape: Dims(4)},
			{Name: "B", ElemType: ort.TensorElementDataTypeInt32, Shape: Dims(2)},
		},
		Outputs: []ValueInfo{
			{Name: "Y", ElemType: ort.TensorElementDataTypeFloat, Shape: Dims(4)},
			{Name: "Z", ElemType: ort.TensorElementDataTypeInt32, Shape: Dims(2)},
		},
	}
}
