package ort

import (
	"fmt"
	"unsafe"
)

// readTypeInfo copies an OrtTypeInfo into Go memory. The caller keeps
// ownership of typeInfo. Caller must hold ortCallMu for reading.
func readTypeInfo(typeInfo uintptr) (TypeInfo, error) {
	if getOnnxTypeFromTypeInfoFunc == nil || castTypeInfoToTensorInfoFunc == nil {
		return TypeInfo{}, fmt.Errorf("ONNX Runtime not initialized")
	}

	var onnxType int32
	if status := getOnnxTypeFromTypeInfoFunc(typeInfo, &onnxType); status != 0 {
		return TypeInfo{}, statusError("failed to get ONNX type", status)
	}

	info := TypeInfo{ONNXType: ONNXType(onnxType)}
	if info.ONNXType != ONNXTypeTensor {
		return info, nil
	}

	// The tensor info returned by the cast is owned by typeInfo.
	var tensorInfo uintptr
	if status := castTypeInfoToTensorInfoFunc(typeInfo, &tensorInfo); status != 0 {
		return TypeInfo{}, statusError("failed to cast type info to tensor info", status)
	}
	tensor, err := readTensorTypeAndShape(tensorInfo)
	if err != nil {
		return TypeInfo{}, err
	}
	info.Tensor = &tensor
	return info, nil
}

// readTensorTypeAndShape copies element type and dimensions out of an
// OrtTensorTypeAndShapeInfo. Caller must hold ortCallMu for reading.
func readTensorTypeAndShape(info uintptr) (TensorTypeAndShapeInfo, error) {
	if info == 0 {
		return TensorTypeAndShapeInfo{}, errNotTensor
	}
	if getTensorElementTypeFunc == nil || getDimensionsCountFunc == nil || getDimensionsFunc == nil {
		return TensorTypeAndShapeInfo{}, fmt.Errorf("ONNX Runtime not initialized")
	}

	var elementType int32
	if status := getTensorElementTypeFunc(info, &elementType); status != 0 {
		return TensorTypeAndShapeInfo{}, statusError("failed to get tensor element type", status)
	}

	var rank uintptr
	if status := getDimensionsCountFunc(info, &rank); status != 0 {
		return TensorTypeAndShapeInfo{}, statusError("failed to get tensor rank", status)
	}

	shape := make(Shape, rank)
	if rank > 0 {
		if status := getDimensionsFunc(info, unsafe.SliceData(shape), rank); status != 0 {
			return TensorTypeAndShapeInfo{}, statusError("failed to get tensor dimensions", status)
		}
	}

	return TensorTypeAndShapeInfo{
		ElementType: TensorElementDataType(elementType),
		Shape:       shape,
	}, nil
}

// IsTensor reports whether the type describes a tensor.
func (t TypeInfo) IsTensor() bool {
	return t.ONNXType == ONNXTypeTensor && t.Tensor != nil
}

// HasSymbolicDimensions reports whether any dimension is unknown (negative).
func (t TensorTypeAndShapeInfo) HasSymbolicDimensions() bool {
	for _, dim := range t.Shape {
		if dim < 0 {
			return true
		}
	}
	return false
}
