package ort

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/x448/float16"
)

// Tensor represents a tensor with data of type T
type Tensor[T any] struct {
	shape       Shape
	data        []T
	elementType TensorElementDataType
	handle      uintptr         // Pointer to OrtValue
	pinner      *runtime.Pinner // Pins data backing array while OrtValue may access it.
}

func (t *Tensor[T]) ortValueHandle() uintptr {
	if t == nil {
		return 0
	}
	return t.handle
}

// NewTensor wraps data in an OrtValue of the given shape without copying. The
// backing array is pinned until Destroy.
func NewTensor[T any](shape Shape, data []T) (*Tensor[T], error) {
	elementType, elementSize, err := tensorElementType[T]()
	if err != nil {
		return nil, err
	}

	shape = cloneShape(shape)
	elementCount, err := shapeElementCount(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != elementCount {
		return nil, fmt.Errorf("data length mismatch: got %d elements, expected %d for shape %v", len(data), elementCount, shape)
	}
	dataBytes, err := tensorDataByteSize(len(data), elementSize)
	if err != nil {
		return nil, err
	}

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	createMemoryInfo := createMemoryInfoFunc
	releaseMemoryInfo := releaseMemoryInfoFunc
	createTensorWithData := createTensorWithDataAsOrtValueFunc
	ready := ortAPI != nil && createMemoryInfo != nil && releaseMemoryInfo != nil && createTensorWithData != nil
	mu.Unlock()
	if !ready {
		return nil, fmt.Errorf("ONNX Runtime not initialized")
	}

	nameBytes, namePtr := GoToCstring("Cpu")
	var memInfo uintptr
	status := createMemoryInfo(namePtr, AllocatorTypeArena, 0, MemTypeCPU, &memInfo)
	runtime.KeepAlive(nameBytes)
	if status != 0 {
		return nil, statusError("failed to create CPU memory info", status)
	}
	defer releaseMemoryInfo(memInfo)

	var dataPtr uintptr
	var pinner *runtime.Pinner
	if len(data) > 0 {
		pinner = &runtime.Pinner{}
		pinner.Pin(unsafe.SliceData(data))
		// #nosec G103 -- CGO-free FFI; the backing array stays pinned for the OrtValue lifetime.
		dataPtr = uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	}

	var handle uintptr
	status = createTensorWithData(memInfo, dataPtr, dataBytes, shapePtr(shape), uintptr(len(shape)), elementType, &handle)
	// Dimensions are only read during the call.
	runtime.KeepAlive(shape)
	if status != 0 {
		if pinner != nil {
			pinner.Unpin()
		}
		return nil, statusError("failed to create tensor", status)
	}

	tensor := &Tensor[T]{
		shape:       shape,
		data:        data,
		elementType: elementType,
		handle:      handle,
		pinner:      pinner,
	}
	runtime.SetFinalizer(tensor, func(t *Tensor[T]) {
		_ = t.Destroy()
	})
	return tensor, nil
}

// GetData returns the tensor data.
// After Destroy() it returns nil. Calling on a nil receiver also returns nil.
func (t *Tensor[T]) GetData() []T {
	if t == nil {
		return nil
	}
	return t.data
}

// Shape returns the tensor shape
func (t *Tensor[T]) Shape() Shape {
	if t == nil {
		return nil
	}
	return t.shape
}

// ElementType returns the ONNX element type the tensor was created with.
func (t *Tensor[T]) ElementType() TensorElementDataType {
	if t == nil {
		return TensorElementDataTypeUndefined
	}
	return t.elementType
}

// Destroy releases the tensor resources
func (t *Tensor[T]) Destroy() error {
	if t == nil {
		return nil
	}

	// Lock order here is ortCallMu -> mu.
	ortCallMu.Lock()
	defer ortCallMu.Unlock()

	var handle uintptr
	var releaseValue func(uintptr)
	var pinner *runtime.Pinner

	mu.Lock()
	handle = t.handle
	releaseValue = releaseValueFunc
	pinner = t.pinner
	t.handle = 0
	t.data = nil
	t.shape = nil
	t.pinner = nil
	runtime.SetFinalizer(t, nil)
	mu.Unlock()

	if handle != 0 && releaseValue != nil {
		releaseValue(handle)
	}
	if pinner != nil {
		pinner.Unpin()
	}

	return nil
}

// Type returns the value type (always ValueTypeTensor for tensors)
func (t *Tensor[T]) Type() ValueType {
	return ValueTypeTensor
}

func cloneShape(shape Shape) Shape {
	if len(shape) == 0 {
		// Keep scalar tensors as non-nil empty shape (rank 0), not nil.
		return Shape{}
	}

	shapeCopy := make(Shape, len(shape))
	copy(shapeCopy, shape)
	return shapeCopy
}

func shapeElementCount(shape Shape) (int, error) {
	maxInt := int(^uint(0) >> 1)

	count := 1
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("invalid shape dimension at index %d: %d (must be >= 0)", i, dim)
		}

		if dim == 0 {
			count = 0
			continue
		}

		if count == 0 {
			continue
		}

		if dim > int64(maxInt) {
			return 0, fmt.Errorf("shape dimension at index %d is too large: %d", i, dim)
		}

		dimInt := int(dim)
		if count > maxInt/dimInt {
			return 0, fmt.Errorf("shape %v exceeds maximum supported element count", shape)
		}

		count *= dimInt
	}

	return count, nil
}

// ShapeElementCount returns the total element count for a shape.
// Dimensions must be non-negative; zero dimensions produce a count of zero.
func ShapeElementCount(shape Shape) (int, error) {
	return shapeElementCount(shape)
}

func shapePtr(shape Shape) *int64 {
	if len(shape) == 0 {
		return nil
	}
	return unsafe.SliceData(shape)
}

func tensorDataByteSize(elementCount int, elementSize uintptr) (uintptr, error) {
	if elementCount < 0 {
		return 0, fmt.Errorf("element count cannot be negative: %d", elementCount)
	}
	if elementCount == 0 {
		return 0, nil
	}
	if elementSize == 0 {
		return 0, fmt.Errorf("element size cannot be zero")
	}

	count := uintptr(elementCount)
	if count > ^uintptr(0)/elementSize {
		return 0, fmt.Errorf("tensor data size overflow: %d elements with element size %d", elementCount, elementSize)
	}

	return count * elementSize, nil
}

// TensorElement is the set of Go types that can back a Tensor.
type TensorElement interface {
	float32 | float64 | float16.Float16 |
		int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		bool
}

// tensorElementType maps Go generic element type T to ONNX tensor element metadata.
func tensorElementType[T any]() (TensorElementDataType, uintptr, error) {
	var zero T

	var elementType TensorElementDataType
	switch any(zero).(type) {
	case float32:
		elementType = TensorElementDataTypeFloat
	case float64:
		elementType = TensorElementDataTypeDouble
	case float16.Float16:
		elementType = TensorElementDataTypeFloat16
	case int8:
		elementType = TensorElementDataTypeInt8
	case int16:
		elementType = TensorElementDataTypeInt16
	case int32:
		elementType = TensorElementDataTypeInt32
	case int64:
		elementType = TensorElementDataTypeInt64
	case uint8:
		elementType = TensorElementDataTypeUint8
	case uint16:
		elementType = TensorElementDataTypeUint16
	case uint32:
		elementType = TensorElementDataTypeUint32
	case uint64:
		elementType = TensorElementDataTypeUint64
	case bool:
		// ONNX bool is one byte, matching Go's bool layout.
		elementType = TensorElementDataTypeBool
	default:
		return TensorElementDataTypeUndefined, 0, fmt.Errorf("unsupported tensor element type %T", zero)
	}
	return elementType, unsafe.Sizeof(zero), nil
}
