package ort

import (
	"fmt"
	"unsafe"
)

// Allocator is the ONNX Runtime default CPU allocator. It is owned by the
// runtime and never released; buffers obtained from it must be returned with
// Free on the same Allocator.
type Allocator struct {
	handle uintptr // Pointer to OrtAllocator
}

// DefaultAllocator returns the runtime's default CPU allocator.
func DefaultAllocator() (*Allocator, error) {
	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	if ortAPI == nil || getAllocatorWithDefaultOptionsFunc == nil {
		mu.Unlock()
		return nil, fmt.Errorf("ONNX Runtime not initialized")
	}
	getDefault := getAllocatorWithDefaultOptionsFunc
	mu.Unlock()

	var handle uintptr
	if status := getDefault(&handle); status != 0 {
		return nil, statusError("failed to get default allocator", status)
	}
	if handle == 0 {
		return nil, fmt.Errorf("failed to get default allocator: runtime returned NULL")
	}
	return &Allocator{handle: handle}, nil
}

// Alloc returns size bytes of runtime-owned memory. The returned slice aliases
// C memory: it must not be appended to, and must be passed to Free exactly once.
func (a *Allocator) Alloc(size int) ([]byte, error) {
	if a == nil || a.handle == 0 {
		return nil, fmt.Errorf("allocator is nil")
	}
	if size <= 0 {
		return nil, fmt.Errorf("allocation size must be > 0, got %d", size)
	}

	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	alloc := allocatorAllocFunc
	mu.Unlock()
	if alloc == nil {
		return nil, fmt.Errorf("ONNX Runtime not initialized")
	}

	var ptr uintptr
	if status := alloc(a.handle, uintptr(size), &ptr); status != 0 {
		return nil, statusError(fmt.Sprintf("failed to allocate %d bytes", size), status)
	}
	if ptr == 0 {
		return nil, fmt.Errorf("failed to allocate %d bytes: runtime returned NULL", size)
	}

	// #nosec G103 -- ptr points to size bytes owned by the ORT allocator until Free.
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size), nil
}

// Free returns a buffer obtained from Alloc to the runtime.
func (a *Allocator) Free(buf []byte) error {
	if a == nil || a.handle == 0 {
		return fmt.Errorf("allocator is nil")
	}
	if len(buf) == 0 {
		return nil
	}
	return a.freePointer(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}

func (a *Allocator) freePointer(ptr uintptr) error {
	ortCallMu.RLock()
	defer ortCallMu.RUnlock()

	mu.Lock()
	free := allocatorFreeFunc
	mu.Unlock()
	if free == nil {
		return fmt.Errorf("ONNX Runtime not initialized")
	}

	if status := free(a.handle, ptr); status != 0 {
		return statusError("failed to free allocator buffer", status)
	}
	return nil
}
