package ort

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/x448/float16"
)

// DynamicTensor is a runtime-allocated tensor whose element type is only known
// after inference. Session.Run produces one for every output slot left nil.
type DynamicTensor struct {
	handle uintptr // Pointer to OrtValue
	info   *TensorTypeAndShapeInfo
}

func newDynamicTensor(handle uintptr) *DynamicTensor {
	tensor := &DynamicTensor{handle: handle}
	runtime.SetFinalizer(tensor, func(t *DynamicTensor) {
		_ = t.Destroy()
	})
	return tensor
}

func (t *DynamicTensor) ortValueHandle() uintptr {
	if t == nil {
		return 0
	}
	return t.handle
}

// Info returns the element type and shape of the tensor.
func (t *DynamicTensor) Info() (TensorTypeAndShapeInfo, error) {
	if t == nil {
		return TensorTypeAndShapeInfo{}, fmt.Errorf("tensor is nil")
	}

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()
	return t.loadInfo()
}

// loadInfo caches the tensor metadata. Caller must hold ortCallMu for reading.
func (t *DynamicTensor) loadInfo() (TensorTypeAndShapeInfo, error) {
	mu.Lock()
	handle := t.handle
	cached := t.info
	getTypeAndShape := getTensorTypeAndShapeFunc
	release := releaseTensorTypeAndShapeInfoFunc
	mu.Unlock()

	if handle == 0 {
		return TensorTypeAndShapeInfo{}, fmt.Errorf("tensor has been destroyed")
	}
	if cached != nil {
		return *cached, nil
	}
	if getTypeAndShape == nil || release == nil {
		return TensorTypeAndShapeInfo{}, fmt.Errorf("ONNX Runtime not initialized")
	}

	var infoHandle uintptr
	if status := getTypeAndShape(handle, &infoHandle); status != 0 {
		return TensorTypeAndShapeInfo{}, statusError("failed to get tensor type and shape", status)
	}
	defer release(infoHandle)

	info, err := readTensorTypeAndShape(infoHandle)
	if err != nil {
		return TensorTypeAndShapeInfo{}, err
	}

	mu.Lock()
	t.info = &info
	mu.Unlock()
	return info, nil
}

// Shape returns the tensor shape, or nil if it cannot be read.
func (t *DynamicTensor) Shape() Shape {
	info, err := t.Info()
	if err != nil {
		return nil
	}
	return cloneShape(info.Shape)
}

// ElementType returns the tensor element type, or TensorElementDataTypeUndefined
// if it cannot be read.
func (t *DynamicTensor) ElementType() TensorElementDataType {
	info, err := t.Info()
	if err != nil {
		return TensorElementDataTypeUndefined
	}
	return info.ElementType
}

// Data copies the tensor contents into a typed Go slice, for example
// []float32 for a float tensor. String and sub-byte types are not supported.
func (t *DynamicTensor) Data() (any, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	info, err := t.loadInfo()
	if err != nil {
		return nil, err
	}
	count, err := shapeElementCount(info.Shape)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	handle := t.handle
	getData := getTensorMutableDataFunc
	mu.Unlock()
	if getData == nil {
		return nil, fmt.Errorf("ONNX Runtime not initialized")
	}

	var dataPtr uintptr
	if count > 0 {
		if status := getData(handle, &dataPtr); status != 0 {
			return nil, statusError("failed to get tensor data", status)
		}
	}

	switch info.ElementType {
	case TensorElementDataTypeFloat:
		return copyTensorData[float32](dataPtr, count), nil
	case TensorElementDataTypeDouble:
		return copyTensorData[float64](dataPtr, count), nil
	case TensorElementDataTypeFloat16:
		return copyTensorData[float16.Float16](dataPtr, count), nil
	case TensorElementDataTypeInt8:
		return copyTensorData[int8](dataPtr, count), nil
	case TensorElementDataTypeInt16:
		return copyTensorData[int16](dataPtr, count), nil
	case TensorElementDataTypeInt32:
		return copyTensorData[int32](dataPtr, count), nil
	case TensorElementDataTypeInt64:
		return copyTensorData[int64](dataPtr, count), nil
	case TensorElementDataTypeUint8:
		return copyTensorData[uint8](dataPtr, count), nil
	case TensorElementDataTypeUint16:
		return copyTensorData[uint16](dataPtr, count), nil
	case TensorElementDataTypeUint32:
		return copyTensorData[uint32](dataPtr, count), nil
	case TensorElementDataTypeUint64:
		return copyTensorData[uint64](dataPtr, count), nil
	case TensorElementDataTypeBool:
		return copyTensorData[bool](dataPtr, count), nil
	default:
		return nil, fmt.Errorf("unsupported tensor element type %s", info.ElementType)
	}
}

func copyTensorData[T TensorElement](ptr uintptr, count int) []T {
	out := make([]T, count)
	if count == 0 || ptr == 0 {
		return out
	}
	// #nosec G103 -- ptr is runtime-owned tensor memory valid while the OrtValue lives.
	src := unsafe.Slice((*T)(unsafe.Pointer(ptr)), count)
	copy(out, src)
	return out
}

// Destroy releases the OrtValue. It is safe to call more than once.
func (t *DynamicTensor) Destroy() error {
	if t == nil {
		return nil
	}

	ortCallMu.Lock()
	defer ortCallMu.Unlock()

	mu.Lock()
	handle := t.handle
	release := releaseValueFunc
	t.handle = 0
	t.info = nil
	runtime.SetFinalizer(t, nil)
	mu.Unlock()

	if handle != 0 && release != nil {
		release(handle)
	}
	return nil
}

// Type returns ValueTypeTensor.
func (t *DynamicTensor) Type() ValueType {
	return ValueTypeTensor
}
